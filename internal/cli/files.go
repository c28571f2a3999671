package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/pathutil"
	"github.com/webstorage/storectl/internal/workspace"
)

// commandError turns a workspace failure into what the user should read:
// the server's message when it sent one, the session hint on a 401, and
// fallback plus the cause otherwise.
func commandError(err error, fallback string) error {
	if apihttp.IsAuthorization(err) {
		return errors.New(constants.MsgSessionExpired)
	}
	if msg := apihttp.UserMessage(err, ""); msg != "" {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", strings.TrimSuffix(fallback, "."), err)
}

// printListing writes files as a table. The active sort column carries the
// direction arrow in its header.
func printListing(out io.Writer, files []models.FileEntry, sort models.SortState) {
	if len(files) == 0 {
		fmt.Fprintln(out, "No files.")
		return
	}
	header := func(label string, column models.SortColumn) string {
		if arrow := sort.Arrow(column); arrow != "" {
			return label + " " + arrow
		}
		return label
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\t%s\t%s\t%s\n",
		header("NAME", models.SortByName),
		header("EXT", models.SortByExtension),
		header("SIZE", models.SortBySize),
		header("MODIFIED", models.SortByDate))
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			f.ID,
			f.DisplayName,
			f.Extension,
			humanize.IBytes(uint64(f.SizeBytes)),
			formatModified(f))
	}
	w.Flush()
}

func formatModified(f models.FileEntry) string {
	if f.ModifiedAt.IsZero() {
		return "-"
	}
	return f.ModifiedAt.Local().Format("2006-01-02 15:04")
}

// parseIDArg parses a file ID argument.
func parseIDArg(arg string) (models.FileID, error) {
	id, err := models.ParseFileID(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid file ID %q", arg)
	}
	return id, nil
}

// openLoggedIn opens the app and loads the listing, which every file
// command needs to resolve IDs.
func openLoggedIn(cmd *cobra.Command, overrides ...func(*config.Config)) (*app, error) {
	a, err := openApp(cmd.OutOrStdout(), overrides...)
	if err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.ws.Open(cmd.Context()); err != nil {
		a.Close()
		return nil, commandError(err, "failed to list files")
	}
	return a, nil
}

func newListCmd() *cobra.Command {
	var (
		sortBy string
		desc   bool
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored files",
		Long: `List the files of the logged-in account in the order the server returns
them. Sort by name, ext, date or size; ascending unless --desc is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireLogin(); err != nil {
				return err
			}

			sort := models.DefaultSort()
			if sortBy != "" {
				column, err := models.ParseSortColumn(sortBy)
				if err != nil {
					return err
				}
				sort.Column = column
			}
			if desc {
				sort.Direction = models.Descending
			}

			if err := a.ws.Listing.ApplySort(cmd.Context(), sort); err != nil {
				return commandError(err, "failed to list files")
			}
			printListing(cmd.OutOrStdout(), a.ws.Listing.Files(), a.ws.Listing.Sort())
			return nil
		},
	}

	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "Sort column: name, ext, date or size")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload local files in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireLogin(); err != nil {
				return err
			}

			if err := a.ws.Upload(cmd.Context(), args); err != nil {
				return commandError(err, constants.MsgUploadFailed)
			}
			return nil
		},
	}
}

func newDownloadCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a stored file into the download directory",
		Long: `Download one file by ID. The file is saved under its stored name; an
existing local file is never overwritten, a numbered name is used instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			if outDir != "" {
				if outDir, err = pathutil.ResolveAbsolutePath(outDir); err != nil {
					return fmt.Errorf("invalid output directory: %w", err)
				}
			}
			a, err := openLoggedIn(cmd, func(cfg *config.Config) {
				if outDir != "" {
					cfg.DownloadDir = outDir
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := a.ws.Download(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, workspace.ErrUnknownFile) {
					return err
				}
				return commandError(err, constants.MsgDownloadFailed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to save into (default from config)")
	return cmd
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rename <file-id> <new-name>",
		Aliases: []string{"mv"},
		Short:   "Rename a stored file (the extension is kept)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			a, err := openLoggedIn(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, ok := a.ws.Listing.Lookup(id)
			if !ok {
				return fmt.Errorf("%w: %s", workspace.ErrUnknownFile, id)
			}
			if err := a.ws.RenameFile(cmd.Context(), id, args[1]); err != nil {
				return commandError(err, constants.MsgRenameFailed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s%s\n", entry.FullName(), args[1], entry.Extension)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <file-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a stored file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			a, err := openLoggedIn(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, ok := a.ws.Listing.Lookup(id)
			if !ok {
				return fmt.Errorf("%w: %s", workspace.ErrUnknownFile, id)
			}
			if !yes {
				p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				ok, err := p.confirm(fmt.Sprintf("Delete %s?", entry.FullName()))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			if err := a.ws.Delete(cmd.Context(), id); err != nil {
				return commandError(err, constants.MsgDeleteFailed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", entry.FullName())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
