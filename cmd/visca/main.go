package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/config"
)

var version string
var commit string
var date string

const metaConfig = "config"

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "visca"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "control VISCA cameras over TCP or RS-232"
	app.Metadata = map[string]any{}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"VISCA_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "camera host, overrides the configuration",
			EnvVars: []string{"VISCA_HOST"},
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "camera VISCA TCP port, overrides the configuration",
		},
		&cli.StringFlag{
			Name:  "serial",
			Usage: "serial device the camera is attached to, overrides host",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to wait for a reply",
			Value: 10 * time.Second,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging and wire tracing",
		},
	}
	app.Before = func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if c.IsSet("host") {
			cfg.Camera.Host = c.String("host")
		}
		if c.IsSet("port") {
			cfg.Camera.Port = c.Int("port")
		}
		if c.IsSet("serial") {
			cfg.Camera.Serial.Device = c.String("serial")
		}
		if c.Bool("verbose") {
			cfg.Log.Verbose = true
			cfg.Log.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		level, _ := cfg.Level()

		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.Level(level))
		slog.SetDefault(slog.New(charm))

		c.App.Metadata[metaConfig] = cfg
		return nil
	}
	app.Commands = cli.Commands{
		&sendCmd,
		&inquireCmd,
		&homeCmd,
		&presetCmd,
		&listCmd,
		&consoleCmd,
		&emulateCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		return 1
	}
	return 0
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[metaConfig].(*config.Config)
}
