package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/lthummus/loginguard/internal/config"
)

var (
	initConfigPath   string
	initConfigDBFile string
	initConfigForce  bool
)

func init() {
	initConfigCmd.Flags().StringVarP(&initConfigPath, "output", "o", "loginguard.yaml", "where to write the config file")
	initConfigCmd.Flags().StringVar(&initConfigDBFile, "db-file", "loginguard.db", "sqlite database file to put in the config")
	initConfigCmd.Flags().BoolVarP(&initConfigForce, "force", "f", false, "overwrite an existing file")
}

func generateSecretKey() (string, error) {
	raw := securecookie.GenerateRandomKey(32)
	if raw == nil {
		return "", errors.New("loginguard: could not generate secret key")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "write a starter config file with a freshly generated secret key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initConfigForce {
			if _, err := os.Stat(initConfigPath); err == nil {
				return fmt.Errorf("loginguard: init-config: %s already exists; use --force to overwrite", initConfigPath)
			}
		}

		secret, err := generateSecretKey()
		if err != nil {
			return err
		}

		if err := config.WriteDefaultConfig(initConfigPath, initConfigDBFile, secret); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", initConfigPath)
		return nil
	},
}
