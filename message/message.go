// Package message models the requests a VISCA camera understands: commands,
// answered by an ACK and a Completion, and inquiries, answered by a single
// reply carrying values.
//
// Messages are immutable once built. A message is described by a fixed byte
// skeleton whose parameter nibbles are zero, plus named parameters that are
// packed into those nibbles when the message is encoded.
package message

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/mklimuk/visca/nibble"
)

var (
	ErrInvalidParam    = errors.New("invalid parameter declaration")
	ErrMissingValue    = errors.New("missing parameter value")
	ErrUnknownParam    = errors.New("unknown parameter")
	ErrValueOutOfRange = errors.New("parameter value out of range")
	ErrInvalidValue    = errors.New("parameter value has unsupported type")
	ErrReplyRequired   = errors.New("inquiry requires a reply description")
	ErrReplyLength     = errors.New("reply length differs from expected")
)

// Values maps parameter names to semantic values.
type Values map[string]any

type Kind int

const (
	KindCommand Kind = iota
	KindInquiry
)

func (k Kind) String() string {
	if k == KindInquiry {
		return "inquiry"
	}
	return "command"
}

// Message is the part shared by commands and inquiries.
type Message interface {
	Name() string
	Kind() Kind
	// UserDefined reports whether the message was typed in by a user rather
	// than shipped with this module. Misbehavior of a user defined message
	// is the user's problem, not a bug.
	UserDefined() bool
}

// Encoder converts a semantic value into the integer packed into nibbles.
type Encoder func(v any) (int, error)

// Decoder converts the integer read from reply nibbles into a semantic value.
type Decoder func(v int) any

// Param places a named value into nibbles of an outgoing message, most
// significant nibble first.
type Param struct {
	Nibbles []int
	// Encode defaults to IntEncoder.
	Encode Encoder
}

// IntEncoder accepts any integer type.
func IntEncoder(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrInvalidValue, v)
}

// MapEncoder encodes a fixed set of values, typically strings naming modes.
func MapEncoder[K comparable](m map[K]int) Encoder {
	return func(v any) (int, error) {
		k, ok := v.(K)
		if !ok {
			return 0, fmt.Errorf("%w: %T", ErrInvalidValue, v)
		}
		n, ok := m[k]
		if !ok {
			return 0, fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
		}
		return n, nil
	}
}

// MapDecoder is the inverse of MapEncoder. Unknown integers decode as is.
func MapDecoder[K comparable](m map[int]K) Decoder {
	return func(v int) any {
		if k, ok := m[v]; ok {
			return k
		}
		return v
	}
}

type options struct {
	params      map[string]Param
	reply       *Reply
	userDefined bool
}

type Opt func(*options)

func WithParam(name string, p Param) Opt {
	return func(o *options) {
		if o.params == nil {
			o.params = make(map[string]Param)
		}
		o.params[name] = p
	}
}

func WithReply(r *Reply) Opt {
	return func(o *options) {
		o.reply = r
	}
}

// UserDefined marks the message as typed in by a user.
func UserDefined() Opt {
	return func(o *options) {
		o.userDefined = true
	}
}

// maxParamNibbles keeps every parameter value a non-negative int.
const maxParamNibbles = 15

// checkNibbles validates that every parameter addresses in-range nibbles that
// are zero in each of the skeletons and that no nibble is claimed twice.
func checkNibbles(name string, nibbles []int, seen map[int]string, skeletons ...[]byte) error {
	if len(nibbles) == 0 {
		return fmt.Errorf("%w: %q declares no nibbles", ErrInvalidParam, name)
	}
	if len(nibbles) > maxParamNibbles {
		return fmt.Errorf("%w: %q spans %d nibbles, at most %d fit in an int", ErrInvalidParam, name, len(nibbles), maxParamNibbles)
	}
	for _, n := range nibbles {
		for _, sk := range skeletons {
			if n < 0 || n >= nibble.Count(sk) {
				return fmt.Errorf("%w: %q nibble %d out of range for %s", ErrInvalidParam, name, n, nibble.Format(sk))
			}
			if nibble.Get(sk, n) != 0 {
				return fmt.Errorf("%w: %q nibble %d is not zero in %s", ErrInvalidParam, name, n, nibble.Format(sk))
			}
		}
		if other, ok := seen[n]; ok {
			return fmt.Errorf("%w: %q nibble %d already used by %q", ErrInvalidParam, name, n, other)
		}
		seen[n] = name
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// readNibbles accumulates nibbles of b most significant first.
func readNibbles(b []byte, nibbles []int) int {
	v := 0
	for _, n := range nibbles {
		v = v<<4 | int(nibble.Get(b, n))
	}
	return v
}

func clone(b []byte) []byte {
	return slices.Clone(b)
}
