package pool

import (
	"unicode/utf8"

	"github.com/kolibri-node/kolibri/symbols"
)

// encodeDigits renders a string as symbol-table slots, three ASCII digits
// per codepoint. Bytes that do not decode as UTF-8 are treated as raw
// codepoints. Table-full conditions truncate the encoding rather than
// failing the association.
func encodeDigits(tbl *symbols.Table, s string) string {
	out := make([]byte, 0, len(s)*3)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			r = rune(s[i])
		}
		i += size
		slot, err := tbl.Encode(r)
		if err != nil {
			break
		}
		out = append(out, '0'+slot[0], '0'+slot[1], '0'+slot[2])
	}
	return string(out)
}

// AddAssociation stores a question-answer pair in the pool's associative
// memory. A duplicate question overwrites in place; at capacity the oldest
// entry is evicted first. The hash pair also feeds the numeric dataset.
func (p *Pool) AddAssociation(tbl *symbols.Table, question, answer, source string, timestamp int64) error {
	assoc := Association{
		Question:   question,
		Answer:     answer,
		Source:     source,
		Timestamp:  timestamp,
		InputHash:  HashString(question),
		OutputHash: HashString(answer),
	}
	if tbl != nil {
		assoc.QuestionDigits = encodeDigits(tbl, question)
		assoc.AnswerDigits = encodeDigits(tbl, answer)
	}

	for i := range p.associations {
		if p.associations[i].InputHash == assoc.InputHash && p.associations[i].Question == question {
			p.associations[i] = assoc
			// The dataset is bounded; a full dataset is not an
			// association failure.
			_ = p.AddExample(assoc.InputHash, assoc.OutputHash)
			return nil
		}
	}

	if len(p.associations) >= MaxAssociations {
		copy(p.associations, p.associations[1:])
		p.associations = p.associations[:len(p.associations)-1]
	}
	p.associations = append(p.associations, assoc)
	_ = p.AddExample(assoc.InputHash, assoc.OutputHash)
	return nil
}

// FindExact returns the association whose question hashes to the given
// value, or nil.
func (p *Pool) FindExact(inputHash int32) *Association {
	for i := range p.associations {
		if p.associations[i].InputHash == inputHash {
			return &p.associations[i]
		}
	}
	return nil
}
