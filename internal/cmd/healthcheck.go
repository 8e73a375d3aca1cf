package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/healthcheck"
)

var (
	host           string
	useConfig      bool
	timeoutSeconds int
	ignoreBadTLS   bool
)

func init() {
	healthCheckCmd.Flags().StringVar(&host, "host", "", "host to check")
	healthCheckCmd.Flags().BoolVarP(&useConfig, "useconfig", "c", false, "read values from config file")
	healthCheckCmd.Flags().IntVarP(&timeoutSeconds, "timeout", "t", 3, "timeout (in seconds)")
	healthCheckCmd.Flags().BoolVar(&ignoreBadTLS, "ignore-bad-tls", false, "ignore bad certificates for HTTPS")
}

// hostFromConfig builds the local URL the server described by the loaded config would be listening on.
func hostFromConfig() string {
	scheme := "http"
	if viper.GetBool(config.KeyServerTLSEnabled) {
		scheme = "https"
	}

	port := viper.GetInt(config.KeyServerPort)
	if port == 0 {
		port = config.DefaultPort
	}

	return fmt.Sprintf("%s://localhost:%d", scheme, port)
}

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "checks the health of loginguard",
	Long: "checks the health of a running loginguard instance. This is best used as a " +
		"defined healthcheck inside a docker container",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !useConfig && host == "" {
			return errors.New("loginguard: healthcheck: one of useconfig host must be specified")
		}

		hostToCheck := host
		if useConfig {
			if err := config.Init(); err != nil {
				log.Error().Err(err).Msg("could not read config")
			}

			if viper.GetBool("healthcheck.tls.ignore_bad_tls") {
				ignoreBadTLS = true
			}

			hostToCheck = hostFromConfig()
		}

		err := healthcheck.CheckHealth(cmd.Context(), hostToCheck, time.Duration(timeoutSeconds)*time.Second, ignoreBadTLS)
		if err != nil {
			log.Error().Err(err).Str("host", hostToCheck).Msg("health check failed")
			return err
		}

		log.Info().Str("host", hostToCheck).Msg("health check ok")
		return nil
	},
}
