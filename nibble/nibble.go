// Package nibble holds the byte level helpers shared by the message model and
// the port: nibble access, envelope validation and hex rendering.
package nibble

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	Terminator byte = 0xFF
	// MessageLead starts every message sent to address 1.
	MessageLead byte = 0x81
	// ReplyLead starts every reply coming from address 1.
	ReplyLead byte = 0x90
)

var (
	ErrEmpty          = errors.New("empty message")
	ErrLead           = errors.New("unexpected lead byte")
	ErrTerminator     = errors.New("message must contain exactly one terminator as its last byte")
	ErrNibbleRange    = errors.New("nibble offset out of range")
	ErrNibbleOccupied = errors.New("nibble already set")
)

// Count returns the number of nibbles in b.
func Count(b []byte) int {
	return len(b) * 2
}

// Get returns nibble i of b; even offsets address the high half of a byte.
func Get(b []byte, i int) byte {
	v := b[i/2]
	if i%2 == 0 {
		return v >> 4
	}
	return v & 0x0F
}

// Set writes v into nibble i of b. It fails if the nibble is already nonzero.
func Set(b []byte, i int, v byte) error {
	if i < 0 || i >= Count(b) {
		return fmt.Errorf("%w: %d", ErrNibbleRange, i)
	}
	if Get(b, i) != 0 {
		return fmt.Errorf("%w: %d in %s", ErrNibbleOccupied, i, Format(b))
	}
	v &= 0x0F
	if i%2 == 0 {
		b[i/2] |= v << 4
	} else {
		b[i/2] |= v
	}
	return nil
}

// Validate checks the envelope every message and reply shares: non-empty,
// starting with lead and carrying a single terminator at the very end.
func Validate(b []byte, lead byte) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	if b[0] != lead {
		return fmt.Errorf("%w: expected %#02x, got %#02x in %s", ErrLead, lead, b[0], Format(b))
	}
	if idx := IndexTerminator(b); idx != len(b)-1 {
		return fmt.Errorf("%w: %s", ErrTerminator, Format(b))
	}
	return nil
}

// IndexTerminator returns the index of the first terminator in b or -1.
func IndexTerminator(b []byte) int {
	for i, v := range b {
		if v == Terminator {
			return i
		}
	}
	return -1
}

// Format renders b as upper case hex pairs separated by spaces, the way
// camera manuals print them.
func Format(b []byte) string {
	if len(b) == 0 {
		return "(empty)"
	}
	s := strings.ToUpper(hex.EncodeToString(b))
	var sb strings.Builder
	sb.Grow(len(s) + len(b))
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s[i : i+2])
	}
	return sb.String()
}

// Parse reads hex pairs, tolerating whitespace, colons and a 0x prefix
// per pair: "81 01 06 04 FF", "8101 0604ff" and "0x81 0x01" all work.
func Parse(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ':' || r == ','
	})
	var sb strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		sb.WriteString(f)
	}
	clean := sb.String()
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length: %q", s)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
