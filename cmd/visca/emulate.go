package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/cmd/visca/console"
	"github.com/mklimuk/visca/emulator"
)

var emulateCmd = cli.Command{
	Name:  "emulate",
	Usage: "run a fake camera accepting VISCA over TCP",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Value: "127.0.0.1:5678"},
		&cli.IntFlag{Name: "sockets", Value: 2, Usage: "commands the camera executes at once"},
		&cli.DurationFlag{Name: "delay", Usage: "time to complete a command"},
		&cli.BoolFlag{Name: "notice", Usage: "greet clients with a network change notice"},
	},
	Action: func(c *cli.Context) error {
		opts := []emulator.Opt{
			emulator.WithLogger(slog.Default()),
			emulator.WithSockets(c.Int("sockets")),
		}
		if c.IsSet("delay") {
			opts = append(opts, emulator.WithCompletionDelay(c.Duration("delay")))
		}
		if c.Bool("notice") {
			opts = append(opts, emulator.WithNetworkNotice())
		}
		cam := emulator.New(opts...)
		if err := cam.Listen(c.String("listen")); err != nil {
			return console.Exit(console.CodeFailure, "%s", console.Red(err))
		}
		console.PInfof(console.PictoCamera, "emulated camera on %s, press ctrl+c to stop", cam.Addr())

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return cam.Close()
	},
}
