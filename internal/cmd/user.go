package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lthummus/loginguard/internal/argon"
	"github.com/lthummus/loginguard/internal/auth"
	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/server"
)

var (
	newUserUsername string
	newUserPassword string
	newUserName     string
	newUserEmail    string
)

func init() {
	userAddCmd.Flags().StringVarP(&newUserUsername, "username", "u", "", "username")
	userAddCmd.Flags().StringVarP(&newUserPassword, "password", "p", "", "password (falls back to the LOGINGUARD_NEW_PASSWORD env var)")
	userAddCmd.Flags().StringVar(&newUserName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&newUserEmail, "email", "", "email address")
	_ = userAddCmd.MarkFlagRequired("username")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userSetActiveCmd("activate", true))
	userCmd.AddCommand(userSetActiveCmd("deactivate", false))
	userCmd.AddCommand(userHashCmd)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "manage users directly against the configured database",
}

func buildServices(cmd *cobra.Command) (*server.Services, error) {
	if err := config.Init(); err != nil {
		return nil, err
	}

	return server.Build(cmd.Context())
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := newUserPassword
		if password == "" {
			password = os.Getenv("LOGINGUARD_NEW_PASSWORD")
		}
		if password == "" {
			return errors.New("loginguard: user add: a password is required")
		}

		services, err := buildServices(cmd)
		if err != nil {
			return err
		}
		defer services.Database.Close()

		u, err := services.Auth.Register(cmd.Context(), auth.RegisterRequest{
			Username: newUserUsername,
			Password: password,
			Name:     newUserName,
			Email:    newUserEmail,
		})
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Username, u.Id)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "list every user",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := buildServices(cmd)
		if err != nil {
			return err
		}
		defer services.Database.Close()

		users, err := services.Database.GetAllUsers(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"#", "Username", "Name", "Email", "Active", "Needs Rehash", "Created"})
		for i, u := range users {
			t.AppendRow(table.Row{
				strconv.Itoa(i + 1),
				u.Username,
				u.Name,
				u.Email,
				u.IsActive(),
				argon.NeedsMigration(u.PasswordHash),
				u.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		t.AppendFooter(table.Row{"", "Total", len(users)})
		t.Render()

		return nil
	},
}

func userSetActiveCmd(name string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <username>",
		Short: name + " a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := buildServices(cmd)
			if err != nil {
				return err
			}
			defer services.Database.Close()

			if active {
				return services.Auth.Activate(cmd.Context(), args[0])
			}
			return services.Auth.Deactivate(cmd.Context(), args[0])
		},
	}
}

var userHashCmd = &cobra.Command{
	Use:   "hash <password>",
	Short: "print the argon2id hash of a password using the configured parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// argon parameters have usable defaults, so a missing config file is fine here
		if err := config.Init(); err != nil {
			log.Debug().Err(err).Msg("hashing with default parameters")
		}

		hash, err := argon.GenerateFromPassword(args[0])
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
