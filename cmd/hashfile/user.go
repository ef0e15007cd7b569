package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hashfile/internal/auth"
	"hashfile/internal/config"
	"hashfile/internal/store"
)

// User provisioning talks to the database directly. The API has no
// registration endpoint.
func newUserCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local users",
	}
	cmd.AddCommand(newUserAddCmd(cfg, jsonOutput))
	cmd.AddCommand(newUserListCmd(cfg, jsonOutput))
	return cmd
}

func newUserAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one local user",
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
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			return withStore(cfg, func(st *store.Store) error {
				created, err := st.CreateUser(cmd.Context(), username, hash, time.Now().UTC())
				if err != nil {
					if errors.Is(err, store.ErrDuplicateUsername) {
						return fmt.Errorf("user %s already exists", username)
					}
					return err
				}

				if *jsonOutput {
					return writeJSON(created)
				}
				return writePlain("created user %s (%d)\n", created.Username, created.ID)
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newUserListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provisioned users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(st *store.Store) error {
				users, err := st.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]any{"count": len(users), "users": users})
				}
				if len(users) == 0 {
					return writePlain("no users configured\n")
				}
				if err := writePlain("ID\tUSERNAME\tCREATED\n"); err != nil {
					return err
				}
				for _, user := range users {
					if err := writePlain("%d\t%s\t%s\n", user.ID, user.Username, formatTime(user.CreatedAt)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func withStore(cfg *config.Config, fn func(*store.Store) error) error {
	if cfg == nil || strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func readPasswordStdin(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	password := strings.TrimRight(string(raw), "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required on stdin")
	}
	return password, nil
}
