package message

import (
	"fmt"

	"github.com/mklimuk/visca/nibble"
)

// Inquiry asks the camera for state. It carries no parameters and is answered
// by a single reply decoded through its Reply.
type Inquiry struct {
	name        string
	skeleton    []byte
	reply       *Reply
	userDefined bool
}

var _ Message = &Inquiry{}

func NewInquiry(name string, skeleton []byte, opts ...Opt) (*Inquiry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := nibble.Validate(skeleton, nibble.MessageLead); err != nil {
		return nil, fmt.Errorf("inquiry %q: %w", name, err)
	}
	if len(o.params) > 0 {
		return nil, fmt.Errorf("inquiry %q: %w: inquiries take no parameters", name, ErrInvalidParam)
	}
	if o.reply == nil {
		return nil, fmt.Errorf("inquiry %q: %w", name, ErrReplyRequired)
	}
	return &Inquiry{
		name:        name,
		skeleton:    clone(skeleton),
		reply:       o.reply,
		userDefined: o.userDefined,
	}, nil
}

func MustInquiry(name string, skeleton []byte, opts ...Opt) *Inquiry {
	i, err := NewInquiry(name, skeleton, opts...)
	if err != nil {
		panic(err)
	}
	return i
}

func (i *Inquiry) Name() string      { return i.name }
func (i *Inquiry) Kind() Kind        { return KindInquiry }
func (i *Inquiry) UserDefined() bool { return i.userDefined }
func (i *Inquiry) Reply() *Reply     { return i.reply }

func (i *Inquiry) Bytes() []byte {
	return clone(i.skeleton)
}

func (i *Inquiry) String() string {
	return fmt.Sprintf("inquiry %q %s", i.name, nibble.Format(i.skeleton))
}
