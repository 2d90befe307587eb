package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests; they use an emulated camera and need no hardware",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Test(); err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run integration tests against a real camera",
		Long: `Run the tests tagged integration. They talk to the camera at
VISCA_CAMERA (host:port) and skip when it is not set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			camera, err := cmd.Flags().GetString("camera")
			if err != nil {
				return fmt.Errorf("could not get camera flag: %w", err)
			}
			if camera != "" {
				if err := os.Setenv("VISCA_CAMERA", camera); err != nil {
					return fmt.Errorf("could not set camera address: %w", err)
				}
			}
			slog.Info("running integration tests", "camera", os.Getenv("VISCA_CAMERA"))
			if err := test.Integ(); err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("camera", "", "camera address, host:port")
	return cmd
}
