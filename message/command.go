package message

import (
	"fmt"

	"github.com/mklimuk/visca/nibble"
)

// Command is answered by an ACK assigning a camera socket, then a Completion
// for that socket.
type Command struct {
	name        string
	skeleton    []byte
	params      map[string]Param
	names       []string
	reply       *Reply
	userDefined bool
}

var _ Message = &Command{}

func NewCommand(name string, skeleton []byte, opts ...Opt) (*Command, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := nibble.Validate(skeleton, nibble.MessageLead); err != nil {
		return nil, fmt.Errorf("command %q: %w", name, err)
	}
	seen := make(map[int]string)
	names := sortedKeys(o.params)
	params := make(map[string]Param, len(o.params))
	for _, pn := range names {
		p := o.params[pn]
		if err := checkNibbles(pn, p.Nibbles, seen, skeleton); err != nil {
			return nil, fmt.Errorf("command %q: %w", name, err)
		}
		p.Nibbles = append([]int(nil), p.Nibbles...)
		if p.Encode == nil {
			p.Encode = IntEncoder
		}
		params[pn] = p
	}
	return &Command{
		name:        name,
		skeleton:    clone(skeleton),
		params:      params,
		names:       names,
		reply:       o.reply,
		userDefined: o.userDefined,
	}, nil
}

// MustCommand is NewCommand panicking on error. A malformed built-in command
// is a bug in this module and must fail loudly.
func MustCommand(name string, skeleton []byte, opts ...Opt) *Command {
	c, err := NewCommand(name, skeleton, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Command) Name() string      { return c.name }
func (c *Command) Kind() Kind        { return KindCommand }
func (c *Command) UserDefined() bool { return c.userDefined }

// Reply returns the non-standard reply shape, nil when the camera answers
// with a plain ACK and Completion.
func (c *Command) Reply() *Reply { return c.reply }

// Params lists parameter names in a stable order.
func (c *Command) Params() []string {
	return append([]string(nil), c.names...)
}

// Bytes encodes the command with values. The skeleton is never modified.
func (c *Command) Bytes(values Values) ([]byte, error) {
	for name := range values {
		if _, ok := c.params[name]; !ok {
			return nil, fmt.Errorf("command %q: %w: %q", c.name, ErrUnknownParam, name)
		}
	}
	b := clone(c.skeleton)
	for _, name := range c.names {
		p := c.params[name]
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("command %q: %w: %q", c.name, ErrMissingValue, name)
		}
		n, err := p.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("command %q parameter %q: %w", c.name, name, err)
		}
		if n < 0 || n >= 1<<(4*len(p.Nibbles)) {
			return nil, fmt.Errorf("command %q parameter %q: %w: %d does not fit in %d nibbles", c.name, name, ErrValueOutOfRange, n, len(p.Nibbles))
		}
		shift := 4 * (len(p.Nibbles) - 1)
		for _, idx := range p.Nibbles {
			if err := nibble.Set(b, idx, byte(n>>shift)&0x0F); err != nil {
				return nil, fmt.Errorf("command %q parameter %q: %w", c.name, name, err)
			}
			shift -= 4
		}
	}
	return b, nil
}

func (c *Command) String() string {
	return fmt.Sprintf("command %q %s", c.name, nibble.Format(c.skeleton))
}
