package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/cmd/visca/console"
	"github.com/mklimuk/visca/config"
	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/port"
	"github.com/mklimuk/visca/vctx"
)

// connect opens a port to the configured camera. The returned context
// carries the verbose flag and must be passed to subsequent waits.
func connect(c *cli.Context, opts ...port.Opt) (*port.Port, context.Context, error) {
	cfg := configFrom(c)
	ctx := vctx.SetVerbose(c.Context, cfg.Log.Verbose)
	opts = append([]port.Opt{
		port.WithLogger(slog.Default()),
		port.WithStatusHandler(console.Status),
	}, append(cfg.PortOpts(), opts...)...)
	p := port.New(opts...)
	if err := p.OpenWith(ctx, cfg.Dialer()); err != nil {
		return nil, nil, console.Exit(console.CodeFatal, "could not connect: %s", console.Red(err))
	}
	return p, ctx, nil
}

// wait blocks on r for at most the configured reply timeout.
func wait(c *cli.Context, ctx context.Context, r *port.Result) (message.Values, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()
	return r.Wait(ctx)
}

// parseValues reads name=value pairs. Values parsing as integers (with an
// optional 0x prefix) become ints, anything else stays a string for
// enumerated parameters.
func parseValues(args []string) (message.Values, error) {
	values := make(message.Values, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", arg)
		}
		if n, err := strconv.ParseInt(raw, 0, 64); err == nil {
			values[name] = int(n)
			continue
		}
		values[name] = raw
	}
	return values, nil
}

// lookup finds a message by name. Dashes may stand for spaces so names can
// be typed without quoting.
func lookup(cat *config.Catalog, name string) (message.Message, bool) {
	for _, candidate := range []string{name, strings.ReplaceAll(name, "-", " ")} {
		if cmd, ok := cat.Commands[candidate]; ok {
			return cmd, true
		}
		if inq, ok := cat.Inquiries[candidate]; ok {
			return inq, true
		}
	}
	return nil, false
}

func catalogFrom(c *cli.Context) (*config.Catalog, error) {
	cat, err := configFrom(c).Catalog()
	if err != nil {
		return nil, console.Exit(console.CodeFailure, "invalid message declarations: %s", console.Red(err))
	}
	return cat, nil
}

// submit sends m and returns its pending result. Inquiries ignore values.
func submit(p *port.Port, m message.Message, values message.Values) *port.Result {
	if inq, ok := m.(*message.Inquiry); ok {
		return p.SendInquiry(inq)
	}
	return p.SendCommand(m.(*message.Command), values)
}
