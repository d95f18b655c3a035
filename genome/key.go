package genome

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// MaxKeyLen bounds the HMAC key length in bytes.
const MaxKeyLen = 32

// defaultKey is the built-in HMAC key used when the operator supplies
// nothing. It provides integrity against accidental corruption only.
const defaultKey = "kolibri-genome-default-key"

// ErrEmptyKey indicates an effective key of zero length.
var ErrEmptyKey = errors.New("genome: empty HMAC key")

// LoadKey resolves the HMAC key by priority: an explicit inline value, an
// explicit key file (trailing CR/LF stripped), else the built-in default.
func LoadKey(inline, filePath string) ([]byte, error) {
	switch {
	case inline != "":
		return checkKey([]byte(inline))
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("genome: read key file %s: %w", filePath, err)
		}
		trimmed := strings.TrimRight(string(data), "\r\n")
		return checkKey([]byte(trimmed))
	default:
		return checkKey([]byte(defaultKey))
	}
}

func checkKey(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if len(key) > MaxKeyLen {
		key = key[:MaxKeyLen]
	}
	return key, nil
}
