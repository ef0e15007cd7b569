package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"hashfile/internal/api"
	"hashfile/internal/blobstore"
	"hashfile/internal/config"
)

const stdoutTarget = "-"

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload one file",
		Args:  requireExactlyArgs(1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			localHash, _, err := blobstore.DeriveReader(f)
			if err != nil {
				return fmt.Errorf("hash %s: %w", path, err)
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Upload(cmd.Context(), filepath.Base(path), f)
				if err != nil {
					return err
				}
				if resp.Hash != localHash {
					return fmt.Errorf("server stored %s as %s, local content hashes to %s", path, resp.Hash, localHash)
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if resp.Duplicate {
					return writePlain("%s (already stored)\n", resp.Hash)
				}
				return writePlain("%s\n", resp.Hash)
			})
		},
	}
}

func newDownloadCmd(cfg *config.Config) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "download <hash>",
		Short: "Download one file",
		Long:  "Download one file.\n\nWithout --file the server's suggested name is used in the current directory. Use --file - to write to stdout.",
		Args:  requireExactlyArgs(1, "hash is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := strings.TrimSpace(args[0])

			return withClient(cfg, func(client *api.Client) error {
				if target == stdoutTarget {
					_, err := client.Download(cmd.Context(), hash, cmd.OutOrStdout())
					return err
				}

				var buf bytes.Buffer
				suggested, err := client.Download(cmd.Context(), hash, &buf)
				if err != nil {
					return err
				}

				dest := target
				if dest == "" {
					dest = downloadTarget(suggested, hash)
				}
				if err := renameio.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", dest)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&target, "file", "f", "", "write to this path (- for stdout)")
	return cmd
}

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <hash>",
		Aliases: []string{"delete"},
		Short:   "Delete one file",
		Args:    requireExactlyArgs(1, "hash is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Delete(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("deleted %s\n", resp.Hash)
			})
		},
	}
}

func newLsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				files, err := client.ListFiles(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(files)
				}
				return writeFileList(files)
			})
		},
	}
}

// downloadTarget keeps server supplied names inside the working directory.
func downloadTarget(suggested, hash string) string {
	name := filepath.Base(strings.TrimSpace(suggested))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		prefix := hash
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		name = "file_" + prefix
	}
	return name
}
