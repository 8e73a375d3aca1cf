package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/ainit"
	"github.com/lthummus/loginguard/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCheckCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(userCmd)
}

var rootCmd = &cobra.Command{
	Use:           "loginguard",
	Short:         "loginguard is a username/password login service with brute force protection",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API (the default when no command is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	err := server.Run(ctx)

	var fileNotFoundError viper.ConfigFileNotFoundError
	if errors.As(err, &fileNotFoundError) {
		log.Error().Msg("no config file found; run `loginguard init-config` to create one")
	}

	return err
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug().Bool("ainit_loaded", ainit.Loaded()).Msg("starting command")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		stop()
		os.Exit(1)
	}
}
