package cmd

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

var defaultTargets = []string{
	runtime.GOOS + "/" + runtime.GOARCH,
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the visca cli",
		Long: `Build the visca cli for one or more os/arch targets.

The cli needs no cgo, so every target is cross-compiled natively:
  dev build --targets linux/amd64,linux/arm64,darwin/arm64`,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := cmd.Flags().GetString("version")
			if err != nil {
				return fmt.Errorf("could not get version flag: %w", err)
			}
			targets, err := cmd.Flags().GetStringSlice("targets")
			if err != nil {
				return fmt.Errorf("could not get targets flag: %w", err)
			}
			for _, target := range targets {
				goos, goarch, ok := strings.Cut(target, "/")
				if !ok {
					return fmt.Errorf("target %q is not os/arch", target)
				}
				out := "dist/visca"
				if len(targets) > 1 {
					out = fmt.Sprintf("dist/visca-%s-%s", goos, goarch)
				}
				slog.Info("building", "target", target, "output", out, "version", version)
				err := build.GoBuild(out, "./cmd/visca", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					OS:            goos,
					Arch:          goarch,
				})
				if err != nil {
					return fmt.Errorf("could not build %s: %w", target, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().StringSlice("targets", defaultTargets, "os/arch pairs to build for")
	return cmd
}
