package config

import (
	"fmt"
	"sort"

	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/nibble"
)

// ParamConfig declares a parameter living in the given nibbles. When Values
// is set the parameter takes one of the named values instead of an integer.
type ParamConfig struct {
	Nibbles []int          `yaml:"nibbles"`
	Values  map[string]int `yaml:"values"`
}

type ReplyConfig struct {
	Value  string                 `yaml:"value"` // "90 50 00 FF"
	Mask   string                 `yaml:"mask"`  // "FF FF F0 FF"
	Params map[string]ParamConfig `yaml:"params"`
}

type CommandConfig struct {
	Name   string                 `yaml:"name"`
	Bytes  string                 `yaml:"bytes"` // "81 01 04 07 00 FF"
	Params map[string]ParamConfig `yaml:"params"`
	Reply  *ReplyConfig           `yaml:"reply"`
}

type InquiryConfig struct {
	Name  string      `yaml:"name"`
	Bytes string      `yaml:"bytes"`
	Reply ReplyConfig `yaml:"reply"`
}

// Catalog holds every message the tool can send by name.
type Catalog struct {
	Commands  map[string]*message.Command
	Inquiries map[string]*message.Inquiry
}

// Builtin returns the catalog of messages shipped with the module.
func Builtin() *Catalog {
	c := &Catalog{
		Commands:  make(map[string]*message.Command),
		Inquiries: make(map[string]*message.Inquiry),
	}
	for _, cmd := range []*message.Command{
		message.Home, message.PowerOn, message.PowerOff,
		message.PresetRecall, message.PresetSet, message.ZoomDirect,
	} {
		c.Commands[cmd.Name()] = cmd
	}
	for _, inq := range []*message.Inquiry{
		message.PowerInquiry, message.ZoomPositionInquiry, message.PanTiltPositionInquiry,
	} {
		c.Inquiries[inq.Name()] = inq
	}
	return c
}

// Catalog builds the built-in messages plus every user declared one. A user
// message may not reuse a name already taken.
func (c *Config) Catalog() (*Catalog, error) {
	cat := Builtin()
	for _, cc := range c.Commands {
		cmd, err := cc.Build()
		if err != nil {
			return nil, err
		}
		if cat.taken(cmd.Name()) {
			return nil, fmt.Errorf("%w: message %q declared twice", ErrInvalid, cmd.Name())
		}
		cat.Commands[cmd.Name()] = cmd
	}
	for _, ic := range c.Inquiries {
		inq, err := ic.Build()
		if err != nil {
			return nil, err
		}
		if cat.taken(inq.Name()) {
			return nil, fmt.Errorf("%w: message %q declared twice", ErrInvalid, inq.Name())
		}
		cat.Inquiries[inq.Name()] = inq
	}
	return cat, nil
}

func (c *Catalog) taken(name string) bool {
	_, cmd := c.Commands[name]
	_, inq := c.Inquiries[name]
	return cmd || inq
}

// Names lists every message name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Commands)+len(c.Inquiries))
	for name := range c.Commands {
		names = append(names, name)
	}
	for name := range c.Inquiries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build turns the declaration into a user defined command.
func (cc CommandConfig) Build() (*message.Command, error) {
	if cc.Name == "" {
		return nil, fmt.Errorf("%w: command without a name", ErrInvalid)
	}
	skeleton, err := nibble.Parse(cc.Bytes)
	if err != nil {
		return nil, fmt.Errorf("command %q: %w", cc.Name, err)
	}
	opts := []message.Opt{message.UserDefined()}
	for name, pc := range cc.Params {
		p := message.Param{Nibbles: pc.Nibbles}
		if len(pc.Values) > 0 {
			p.Encode = message.MapEncoder(pc.Values)
		}
		opts = append(opts, message.WithParam(name, p))
	}
	if cc.Reply != nil {
		r, err := cc.Reply.build()
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", cc.Name, err)
		}
		opts = append(opts, message.WithReply(r))
	}
	cmd, err := message.NewCommand(cc.Name, skeleton, opts...)
	if err != nil {
		return nil, fmt.Errorf("command %q: %w", cc.Name, err)
	}
	return cmd, nil
}

// Build turns the declaration into a user defined inquiry.
func (ic InquiryConfig) Build() (*message.Inquiry, error) {
	if ic.Name == "" {
		return nil, fmt.Errorf("%w: inquiry without a name", ErrInvalid)
	}
	skeleton, err := nibble.Parse(ic.Bytes)
	if err != nil {
		return nil, fmt.Errorf("inquiry %q: %w", ic.Name, err)
	}
	r, err := ic.Reply.build()
	if err != nil {
		return nil, fmt.Errorf("inquiry %q: %w", ic.Name, err)
	}
	inq, err := message.NewInquiry(ic.Name, skeleton, message.WithReply(r), message.UserDefined())
	if err != nil {
		return nil, fmt.Errorf("inquiry %q: %w", ic.Name, err)
	}
	return inq, nil
}

func (rc ReplyConfig) build() (*message.Reply, error) {
	value, err := nibble.Parse(rc.Value)
	if err != nil {
		return nil, fmt.Errorf("reply value: %w", err)
	}
	mask, err := nibble.Parse(rc.Mask)
	if err != nil {
		return nil, fmt.Errorf("reply mask: %w", err)
	}
	params := make(map[string]message.ReplyParam, len(rc.Params))
	for name, pc := range rc.Params {
		p := message.ReplyParam{Nibbles: pc.Nibbles}
		if len(pc.Values) > 0 {
			p.Decode = message.MapDecoder(invert(pc.Values))
		}
		params[name] = p
	}
	return message.NewReply(value, mask, params)
}

func invert(m map[string]int) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
