package genome

import (
	"io"
	"os"
)

// VerifyStatus is the result of a whole-file verification pass.
type VerifyStatus int

const (
	// VerifyOK means every block parsed, chained and authenticated.
	VerifyOK VerifyStatus = iota
	// VerifyMissing means the file does not exist (a fresh log, not
	// corruption).
	VerifyMissing
	// VerifyInvalid means a parse, chain or HMAC failure.
	VerifyInvalid
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyOK:
		return "ok"
	case VerifyMissing:
		return "missing"
	default:
		return "invalid"
	}
}

// VerifyFile walks the journal at path read-only and checks every
// invariant: block shape, index continuity, prev-hash linkage, HMAC.
func VerifyFile(path string, key []byte) VerifyStatus {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return VerifyMissing
		}
		return VerifyInvalid
	}
	defer f.Close()

	var (
		nextIndex uint64
		lastHash  [HashSize]byte
	)
	buf := make([]byte, BlockSize)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF {
			return VerifyOK
		}
		if err != nil {
			// Truncated trailing bytes or a read error.
			return VerifyInvalid
		}
		b, err := UnmarshalBlock(buf)
		if err != nil {
			return VerifyInvalid
		}
		if b.Index != nextIndex || b.PrevHash != lastHash || !b.VerifyHMAC(key) {
			return VerifyInvalid
		}
		lastHash = b.Hash()
		nextIndex++
	}
}
