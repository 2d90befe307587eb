package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/cmd/visca/console"
	"github.com/mklimuk/visca/config"
	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/port"
)

var shellVerbs = []string{"send", "raw", "list", "status", "help", "exit"}

var consoleCmd = cli.Command{
	Name:  "console",
	Usage: "interactive session; requests are pipelined and answers printed as they arrive",
	Action: func(c *cli.Context) error {
		cat, err := catalogFrom(c)
		if err != nil {
			return err
		}
		var history string
		if home, err := os.UserHomeDir(); err == nil {
			history = filepath.Join(home, ".visca_history")
		}
		sh, err := console.NewShell("visca> ", history, shellVerbs, func() []string {
			names := cat.Names()
			for i, n := range names {
				names[i] = strings.ReplaceAll(n, " ", "-")
			}
			return names
		})
		if err != nil {
			return console.Exit(console.CodeFailure, "%s", err)
		}
		defer func() { _ = sh.Close() }()
		console.SetOutput(sh.Stdout(), sh.Stderr())

		p, _, err := connect(c)
		if err != nil {
			return err
		}
		defer p.Close(nil)

		for {
			line, err := sh.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return console.Exit(console.CodeFailure, "%s", err)
			}
			if quit := runLine(p, cat, line); quit {
				return nil
			}
		}
	},
}

// runLine executes one console line and reports whether the operator asked
// to leave.
func runLine(p *port.Port, cat *config.Catalog, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return true
	case "help":
		console.Print("send <name> [param=value...]   send a catalog message")
		console.Print("raw <hex bytes>                send raw command bytes")
		console.Print("list                           list known messages")
		console.Print("status                         show outstanding requests")
	case "list":
		console.Print(strings.Join(cat.Names(), ", "))
	case "status":
		initial, completion := p.Outstanding()
		state := console.Green("open")
		if p.Closed() {
			state = console.Red("closed")
		}
		console.Infof("connection %s, %d awaiting reply, %d executing", state, initial, completion)
	case "raw":
		cmd, err := config.CommandConfig{Name: "raw", Bytes: strings.Join(fields[1:], " ")}.Build()
		if err != nil {
			console.Errorf("%s", err)
			return false
		}
		report(cmd, p.SendCommand(cmd, nil))
	case "send":
		if len(fields) < 2 {
			console.Errorf("usage: send <name> [param=value...]")
			return false
		}
		m, ok := lookup(cat, fields[1])
		if !ok {
			console.Errorf("unknown message %q", fields[1])
			return false
		}
		values, err := parseValues(fields[2:])
		if err != nil {
			console.Errorf("%s", err)
			return false
		}
		report(m, submit(p, m, values))
	default:
		console.Errorf("unknown verb %q, try help", fields[0])
	}
	return false
}

// report prints the outcome of r once it settles without blocking the
// prompt.
func report(m message.Message, r *port.Result) {
	go func() {
		<-r.Done()
		if err := r.Err(); err != nil {
			if port.IsFatal(err) {
				console.Errorf("%s: %s", m.Name(), err)
				return
			}
			console.Warnf("%s: %s", m.Name(), err)
			return
		}
		values, _ := r.Wait(context.Background())
		if len(values) == 0 {
			console.PInfof(console.PictoCheck, "%s done", m.Name())
			return
		}
		console.PInfof(console.PictoCheck, "%s", m.Name())
		console.Values(values)
	}()
}
