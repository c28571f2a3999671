package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/events"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/state"
	"github.com/webstorage/storectl/internal/workspace"
)

const shellHelp = `Commands:
  ls                     Reload and show the listing
  sort <name|ext|date|size>
                         Sort by column; repeating the active column flips direction
  up <file> [file...]    Upload files (runs in the background)
  get <id>               Download a file (runs in the background)
  edit <id>              Start renaming a file
  save <name>            Submit the rename started with edit
  cancel                 Leave rename mode
  mv <id> <name>         Rename in one step
  rm <id>                Delete a file
  status                 Show the status line and running transfers
  whoami                 Show the logged-in account
  login | signup         Authenticate
  logout                 End the session
  help                   Show this help
  quit                   Wait for transfers and exit`

// lockedWriter serializes writes from the prompt loop, background transfers
// and the progress renderer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Fd exposes the terminal descriptor so the renderer can still draw bars.
func (l *lockedWriter) Fd() uintptr {
	if f, ok := l.w.(*os.File); ok {
		return f.Fd()
	}
	return ^uintptr(0)
}

// shell is the interactive file view: one command per line against a
// single long-lived workspace.
type shell struct {
	app    *app
	ws     *workspace.Workspace
	out    io.Writer
	prompt *prompter
	ended  <-chan events.Event

	// redirectDelay is the pause between a successful signup and the login prompt.
	redirectDelay time.Duration

	wg sync.WaitGroup
}

func newShell(a *app, in io.Reader, out io.Writer) *shell {
	return &shell{
		app:           a,
		ws:            a.ws,
		out:           out,
		prompt:        newPrompter(in, out),
		ended:         a.bus.Subscribe(events.EventSessionEnded),
		redirectDelay: constants.SignupRedirectDelay,
	}
}

func (s *shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// run reads commands until quit or end of input, then waits for background
// transfers.
func (s *shell) run(ctx context.Context) error {
	defer s.app.bus.Unsubscribe(events.EventSessionEnded, s.ended)
	defer s.wg.Wait()

	s.printf("%s %s - type 'help' for commands\n", constants.AppName, Version)
	if s.ws.Session().IsAuthenticated() {
		s.list(ctx, s.ws.Open(ctx))
	} else {
		s.printf("Not logged in. Use 'login' or 'signup'.\n")
	}

	for {
		s.drainSessionEvents()
		line, err := s.prompt.line(s.promptString())
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.printf("\n")
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.exec(ctx, line) {
			return nil
		}
	}
}

func (s *shell) promptString() string {
	if edit, ok := s.ws.Rename.Current(); ok {
		return fmt.Sprintf("%s [rename %s%s]> ", constants.AppName, edit.CandidateName, edit.OriginalExtension)
	}
	return constants.AppName + "> "
}

// drainSessionEvents reports sessions the server ended since the last prompt.
func (s *shell) drainSessionEvents() {
	for {
		select {
		case ev, ok := <-s.ended:
			if !ok {
				return
			}
			se, _ := ev.(*events.SessionEvent)
			if se != nil && se.Reason != "logout" {
				s.printf("%s Use 'login' to continue.\n", constants.MsgSessionExpired)
			}
		default:
			return
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit", "q":
		if _, downloading := s.ws.Transfers.ActiveDownload(); downloading || s.ws.Transfers.UploadBusy() {
			s.printf("Waiting for transfers to finish...\n")
		}
		return true
	case "help", "?":
		s.printf("%s\n", shellHelp)
	case "login":
		s.login(ctx, args)
	case "signup":
		s.signup(ctx, args)
	default:
		if !s.ws.Session().IsAuthenticated() {
			s.printf("Not logged in. Use 'login' or 'signup'.\n")
			return false
		}
		s.execAuthenticated(ctx, name, args)
	}
	return false
}

func (s *shell) execAuthenticated(ctx context.Context, name string, args []string) {
	switch name {
	case "ls", "list", "refresh":
		s.list(ctx, s.ws.Listing.Refresh(ctx))
	case "sort":
		if len(args) != 1 {
			s.printf("usage: sort <name|ext|date|size>\n")
			return
		}
		column, err := models.ParseSortColumn(args[0])
		if err != nil {
			s.printf("%v\n", err)
			return
		}
		_, err = s.ws.SetSort(ctx, column)
		s.list(ctx, err)
	case "up", "upload":
		s.upload(ctx, args)
	case "get", "download":
		s.download(ctx, args)
	case "edit":
		s.edit(args)
	case "save":
		s.save(ctx, args)
	case "cancel":
		s.ws.CancelRename()
	case "mv", "rename":
		s.rename(ctx, args)
	case "rm", "delete":
		s.remove(ctx, args)
	case "status":
		s.status()
	case "whoami":
		printWhoami(s.out, s.app)
	case "logout":
		if err := s.ws.Logout(); err != nil {
			s.printf("Logout: %v\n", err)
		}
		s.printf("Logged out\n")
	default:
		s.printf("Unknown command %q. Type 'help' for commands.\n", name)
	}
}

// list prints the listing, or the failure that kept the previous one.
func (s *shell) list(ctx context.Context, err error) {
	if err != nil {
		s.printf("%v\n", commandError(err, "failed to list files"))
		return
	}
	printListing(s.out, s.ws.Listing.Files(), s.ws.Listing.Sort())
}

// background runs fn while the prompt stays usable.
func (s *shell) background(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *shell) upload(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		s.printf("usage: up <file> [file...]\n")
		return
	}
	if s.ws.Transfers.UploadBusy() {
		s.printf("%v\n", state.ErrUploadInProgress)
		return
	}
	s.background(func() {
		if err := s.ws.Upload(ctx, paths); errors.Is(err, state.ErrUploadInProgress) {
			s.printf("%v\n", err)
		}
	})
}

func (s *shell) download(ctx context.Context, args []string) {
	entry, ok := s.lookupArg(args, "get <id>")
	if !ok {
		return
	}
	if _, busy := s.ws.Transfers.ActiveDownload(); busy {
		s.printf("%v\n", state.ErrDownloadInProgress)
		return
	}
	s.background(func() {
		if _, err := s.ws.DownloadEntry(ctx, entry); errors.Is(err, state.ErrDownloadInProgress) {
			s.printf("%v\n", err)
		}
	})
}

func (s *shell) edit(args []string) {
	entry, ok := s.lookupArg(args, "edit <id>")
	if !ok {
		return
	}
	if err := s.ws.Rename.Begin(entry); err != nil {
		s.printf("%v\n", err)
	}
}

func (s *shell) save(ctx context.Context, args []string) {
	edit, ok := s.ws.Rename.Current()
	if !ok {
		s.printf("%v\n", state.ErrNotEditing)
		return
	}
	name := edit.CandidateName
	if len(args) > 0 {
		name = strings.Join(args, " ")
	}
	if err := s.ws.SubmitRename(ctx, name); err != nil {
		s.printf("%v\n", commandError(err, constants.MsgRenameFailed))
		return
	}
	s.list(ctx, nil)
}

func (s *shell) rename(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.printf("usage: mv <id> <name>\n")
		return
	}
	if _, ok := s.lookupArg(args[:1], "mv <id> <name>"); !ok {
		return
	}
	id, _ := models.ParseFileID(args[0])
	if err := s.ws.RenameFile(ctx, id, strings.Join(args[1:], " ")); err != nil {
		s.printf("%v\n", commandError(err, constants.MsgRenameFailed))
		return
	}
	s.list(ctx, nil)
}

func (s *shell) remove(ctx context.Context, args []string) {
	entry, ok := s.lookupArg(args, "rm <id>")
	if !ok {
		return
	}
	if err := s.ws.Delete(ctx, entry.ID); err != nil {
		s.printf("%v\n", commandError(err, constants.MsgDeleteFailed))
		return
	}
	s.printf("Deleted %s\n", entry.FullName())
	s.list(ctx, nil)
}

func (s *shell) status() {
	if msg := s.ws.Status.Message(); msg != "" {
		s.printf("Status: %s\n", msg)
	}
	for _, p := range []state.Progress{s.ws.Transfers.Upload(), s.ws.Transfers.Download()} {
		if p.Active {
			s.printf("%-8s %3d%%  %s\n", p.Kind, p.Percent, p.Name)
		}
	}
}

// lookupArg resolves the single ID argument against the displayed listing.
func (s *shell) lookupArg(args []string, usage string) (models.FileEntry, bool) {
	if len(args) != 1 {
		s.printf("usage: %s\n", usage)
		return models.FileEntry{}, false
	}
	id, err := parseIDArg(args[0])
	if err != nil {
		s.printf("%v\n", err)
		return models.FileEntry{}, false
	}
	entry, ok := s.ws.Listing.Lookup(id)
	if !ok {
		s.printf("%v: %s\n", workspace.ErrUnknownFile, id)
		return models.FileEntry{}, false
	}
	return entry, true
}

func (s *shell) login(ctx context.Context, args []string) {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	creds, err := readCredentials(s.prompt, username, false)
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	if err := login(ctx, s.ws, creds, s.out); err != nil {
		s.printf("%v\n", err)
		return
	}
	s.list(ctx, s.ws.Open(ctx))
}

func (s *shell) signup(ctx context.Context, args []string) {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	creds, err := readCredentials(s.prompt, username, true)
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	message, err := s.ws.Signup(ctx, creds)
	if err != nil {
		s.printf("%v\n", commandError(err, "signup failed"))
		return
	}
	if message != "" {
		s.printf("%s\n", message)
	}
	s.printf("Continuing to login...\n")
	select {
	case <-time.After(s.redirectDelay):
	case <-ctx.Done():
		return
	}
	s.login(ctx, []string{creds.Username})
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive file view",
		Long: `Start an interactive session: the listing stays loaded, uploads and
downloads run in the background with progress bars, and the session is
checked on every request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &lockedWriter{w: cmd.OutOrStdout()}
			a, err := openApp(out)
			if err != nil {
				return err
			}
			defer a.Close()
			return newShell(a, cmd.InOrStdin(), out).run(cmd.Context())
		},
	}
}
