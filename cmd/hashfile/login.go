package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hashfile/internal/api"
	"hashfile/internal/auth"
	"hashfile/internal/config"
)

func newLoginCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Exchange credentials for a bearer token",
		Long:  "Exchange credentials for a bearer token.\n\nExport the printed token as HASHFILE_TOKEN to use it with the file commands.",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}
			username, err := auth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			password, err := readPasswordStdin(cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Login(cmd.Context(), username, password)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s\n", resp.AccessToken)
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newWhoamiCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind HASHFILE_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				me, err := client.Me(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(me)
				}
				return writePlain("%s (%d)\n", me.Username, me.ID)
			})
		},
	}
}
