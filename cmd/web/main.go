package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"picturebuzz/internal/config"
	"picturebuzz/internal/logger"
	"picturebuzz/internal/server"
)

const releaseVersion = "1.0.0"

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "picturebuzz",
		Short:         "Realtime picture-guessing buzzer game for classrooms.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			appLog := logger.New(cfg.LogLevel, cfg.LogPretty)
			appLog.Info().Str("version", releaseVersion).Msg("starting picturebuzz")
			return server.Run(cmd.Context(), *cfg, appLog)
		},
	}

	config.Register(cmd.Flags(), cfg, config.NewViper())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("picturebuzz v{{.Version}}\n")

	return cmd
}

func main() {
	log.SetFlags(0)

	// .env only fills variables that are not already set
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}
