package main

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/cmd/visca/console"
	"github.com/mklimuk/visca/message"
)

var homeCmd = cli.Command{
	Name:  "home",
	Usage: "move the camera to its home position",
	Action: func(c *cli.Context) error {
		return exchange(c, message.Home, nil)
	},
}

var presetCmd = cli.Command{
	Name:  "preset",
	Usage: "recall or store camera presets",
	Subcommands: []*cli.Command{
		&presetRecallCmd,
		&presetSetCmd,
	},
}

var presetRecallCmd = cli.Command{
	Name:      "recall",
	Aliases:   []string{"go"},
	ArgsUsage: "<preset>",
	Action: func(c *cli.Context) error {
		n, err := presetArg(c)
		if err != nil {
			return err
		}
		return exchange(c, message.PresetRecall, message.Values{"preset": n})
	},
}

var presetSetCmd = cli.Command{
	Name:      "set",
	Aliases:   []string{"store"},
	ArgsUsage: "<preset>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask before overwriting"},
	},
	Action: func(c *cli.Context) error {
		n, err := presetArg(c)
		if err != nil {
			return err
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("overwrite preset " + strconv.Itoa(n) + " with the current position?")
			if err != nil {
				return console.Exit(console.CodeFailure, "%s", err)
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "preset left untouched")
				return nil
			}
		}
		return exchange(c, message.PresetSet, message.Values{"preset": n})
	},
}

func presetArg(c *cli.Context) (int, error) {
	if c.NArg() != 1 {
		return 0, console.Exit(console.CodeFailure, "exactly one preset number is required")
	}
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, console.Exit(console.CodeFailure, "invalid preset %q", c.Args().First())
	}
	return n, nil
}
