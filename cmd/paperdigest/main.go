package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"PaperDigest/internal/app"
	"PaperDigest/internal/config"
	"PaperDigest/internal/logging"
)

var Version = "dev"

type options struct {
	configPath string
	envFile    string
}

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "paperdigest",
		Short:         "Daily digest of relevant AI research papers, posted to Slack",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config (defaults to $PAPERDIGEST_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file with credentials; ignored when missing")

	cmd.AddCommand(runCmd(opts))
	cmd.AddCommand(testCmd(opts))
	cmd.AddCommand(scheduleCmd(opts))
	cmd.AddCommand(versionCmd())
	return cmd
}

func bootstrap(opts *options) (*app.Application, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

func runCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, summarize and publish one digest, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			outcome, err := application.Run(ctx)
			if err != nil {
				return err
			}
			if outcome.Aborted() {
				logger.Error("digest run aborted", "run_id", outcome.RunID, "kind", outcome.ErrorKind)
				return fmt.Errorf("run %s aborted at %s: %w", outcome.RunID, outcome.FailedStage, outcome.Err)
			}
			return nil
		},
	}
}

func testCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Post a single test message to the Slack webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := bootstrap(opts)
			if err != nil {
				return err
			}
			return application.SelfTest(cmd.Context())
		},
	}
}

func scheduleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the digest on the configured cron expression until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := bootstrap(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Schedule(ctx)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
