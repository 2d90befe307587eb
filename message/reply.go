package message

import (
	"fmt"

	"github.com/mklimuk/visca/nibble"
)

// ReplyParam reads a named value out of reply nibbles.
type ReplyParam struct {
	Nibbles []int
	// Decode defaults to returning the integer unchanged.
	Decode Decoder
}

// Reply describes the reply a message expects: bytes that must match value
// wherever mask has bits set, and parameters living in the masked out
// nibbles.
type Reply struct {
	value  []byte
	mask   []byte
	params map[string]ReplyParam
	names  []string
}

func NewReply(value, mask []byte, params map[string]ReplyParam) (*Reply, error) {
	if err := nibble.Validate(value, nibble.ReplyLead); err != nil {
		return nil, fmt.Errorf("invalid reply value: %w", err)
	}
	if len(mask) != len(value) {
		return nil, fmt.Errorf("reply mask %s does not match value %s in length", nibble.Format(mask), nibble.Format(value))
	}
	seen := make(map[int]string)
	names := sortedKeys(params)
	for _, name := range names {
		if err := checkNibbles(name, params[name].Nibbles, seen, value, mask); err != nil {
			return nil, err
		}
	}
	r := &Reply{
		value:  clone(value),
		mask:   clone(mask),
		params: make(map[string]ReplyParam, len(params)),
		names:  names,
	}
	for name, p := range params {
		p.Nibbles = append([]int(nil), p.Nibbles...)
		r.params[name] = p
	}
	return r, nil
}

// MustReply is NewReply panicking on error. Only use it for replies shipped
// with this module.
func MustReply(value, mask []byte, params map[string]ReplyParam) *Reply {
	r, err := NewReply(value, mask, params)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Reply) Len() int {
	return len(r.value)
}

// Match reports whether b has the expected length and agrees with the
// expected value on every masked bit.
func (r *Reply) Match(b []byte) bool {
	if len(b) != r.Len() {
		return false
	}
	for i := range b {
		if b[i]&r.mask[i] != r.value[i]&r.mask[i] {
			return false
		}
	}
	return true
}

// Decode extracts every parameter of b. It does not check masked bytes; call
// Match first.
func (r *Reply) Decode(b []byte) (Values, error) {
	if len(b) != r.Len() {
		return nil, fmt.Errorf("%w: expected %d bytes, got %s", ErrReplyLength, r.Len(), nibble.Format(b))
	}
	values := make(Values, len(r.params))
	for _, name := range r.names {
		p := r.params[name]
		v := readNibbles(b, p.Nibbles)
		if p.Decode == nil {
			values[name] = v
			continue
		}
		values[name] = p.Decode(v)
	}
	return values, nil
}

func (r *Reply) String() string {
	return fmt.Sprintf("value=%s mask=%s", nibble.Format(r.value), nibble.Format(r.mask))
}
