package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/cmd/visca/console"
	"github.com/mklimuk/visca/config"
	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/nibble"
)

var sendCmd = cli.Command{
	Name:      "send",
	Usage:     "send a command by name, or raw bytes, and wait for its completion",
	ArgsUsage: "<name> [param=value...]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "raw", Usage: "raw command bytes, e.g. \"81 01 04 07 02 FF\""},
	},
	Action: func(c *cli.Context) error {
		var m message.Message
		args := c.Args().Slice()
		if raw := c.String("raw"); raw != "" {
			cmd, err := config.CommandConfig{Name: "raw", Bytes: raw}.Build()
			if err != nil {
				return console.Exit(console.CodeFailure, "invalid command: %s", console.Red(err))
			}
			m = cmd
		} else {
			if len(args) == 0 {
				return console.Exit(console.CodeFailure, "message name or --raw is required")
			}
			cat, err := catalogFrom(c)
			if err != nil {
				return err
			}
			var ok bool
			m, ok = lookup(cat, args[0])
			if !ok {
				return console.Exit(console.CodeFailure, "unknown message %q, see visca list", args[0])
			}
			args = args[1:]
		}
		values, err := parseValues(args)
		if err != nil {
			return console.Exit(console.CodeFailure, "%s", err)
		}
		return exchange(c, m, values)
	},
}

var inquireCmd = cli.Command{
	Name:      "inquire",
	Aliases:   []string{"inq"},
	Usage:     "ask the camera a question and print the decoded answer",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "raw", Usage: "raw inquiry bytes, e.g. \"81 09 04 00 FF\""},
		&cli.StringFlag{Name: "value", Usage: "expected reply bytes for --raw", Value: "90 50 00 FF"},
		&cli.StringFlag{Name: "mask", Usage: "reply mask for --raw; zero nibbles are returned as \"value\"", Value: "FF FF F0 FF"},
	},
	Action: func(c *cli.Context) error {
		if raw := c.String("raw"); raw != "" {
			mask, err := nibble.Parse(c.String("mask"))
			if err != nil {
				return console.Exit(console.CodeFailure, "invalid mask: %s", console.Red(err))
			}
			ic := config.InquiryConfig{
				Name:  "raw",
				Bytes: raw,
				Reply: config.ReplyConfig{
					Value: c.String("value"),
					Mask:  c.String("mask"),
				},
			}
			if free := freeNibbles(mask); len(free) > 0 {
				ic.Reply.Params = map[string]config.ParamConfig{"value": {Nibbles: free}}
			}
			inq, err := ic.Build()
			if err != nil {
				return console.Exit(console.CodeFailure, "invalid inquiry: %s", console.Red(err))
			}
			return exchange(c, inq, nil)
		}
		if c.NArg() != 1 {
			return console.Exit(console.CodeFailure, "exactly one inquiry name is required")
		}
		cat, err := catalogFrom(c)
		if err != nil {
			return err
		}
		m, ok := lookup(cat, c.Args().First())
		if !ok || m.Kind() != message.KindInquiry {
			return console.Exit(console.CodeFailure, "unknown inquiry %q, see visca list", c.Args().First())
		}
		return exchange(c, m, nil)
	},
}

var listCmd = cli.Command{
	Name:  "list",
	Usage: "list the messages known from the built-in catalog and the configuration",
	Action: func(c *cli.Context) error {
		cat, err := catalogFrom(c)
		if err != nil {
			return err
		}
		for _, name := range cat.Names() {
			if cmd, ok := cat.Commands[name]; ok {
				params := cmd.Params()
				if len(params) == 0 {
					console.Printf("%s  %s\n", console.Bold(name), cmd)
					continue
				}
				console.Printf("%s  %s  %s=...\n", console.Bold(name), cmd, strings.Join(params, "=... "))
				continue
			}
			console.Printf("%s  %s\n", console.Bold(name), cat.Inquiries[name])
		}
		return nil
	},
}

// exchange connects, sends m and prints the outcome.
func exchange(c *cli.Context, m message.Message, values message.Values) error {
	p, ctx, err := connect(c)
	if err != nil {
		return err
	}
	defer p.Close(nil)
	res, err := wait(c, ctx, submit(p, m, values))
	if err != nil {
		return console.ExitRequest(m.Name(), err)
	}
	console.Values(res)
	return nil
}

// freeNibbles lists the nibbles a reply mask leaves open, skipping the
// envelope.
func freeNibbles(mask []byte) []int {
	var free []int
	for i := 2; i < nibble.Count(mask)-2; i++ {
		if nibble.Get(mask, i) == 0 {
			free = append(free, i)
		}
	}
	return free
}
