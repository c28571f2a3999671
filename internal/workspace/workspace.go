// Package workspace is the authenticated file view: it owns the session and
// the state containers and composes them into the user's actions.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/webstorage/storectl/internal/api"
	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/events"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/logging"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/session"
	"github.com/webstorage/storectl/internal/state"
)

// ErrUnknownFile is returned for an ID that is not in the displayed listing.
var ErrUnknownFile = errors.New("no such file in the listing")

// Client is the subset of the API the workspace drives.
type Client interface {
	state.Lister
	state.Renamer
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error)
	Signup(ctx context.Context, creds models.Credentials) (string, error)
	Upload(ctx context.Context, paths []string, progress api.ProgressFunc) (string, error)
	Download(ctx context.Context, id models.FileID, name string, open api.OpenFunc, progress api.ProgressFunc) (int64, error)
	Delete(ctx context.Context, id models.FileID) (string, error)
}

// Options configures a Workspace.
type Options struct {
	Client      Client
	Session     *session.Session
	Bus         *events.EventBus
	Saver       Saver
	Logger      *logging.Logger
	StatusDelay time.Duration // 0 uses the default
}

// Workspace owns the session and every state container of the file view.
type Workspace struct {
	client  Client
	session *session.Session
	bus     *events.EventBus
	saver   Saver
	logger  *logging.Logger

	Status    *state.Status
	Listing   *state.Listing
	Transfers *state.TransferTracker
	Rename    *state.RenameSession

	ended     <-chan events.Event
	done      chan struct{}
	closeOnce sync.Once
}

// New wires a workspace. It starts a watcher that tears the view down when
// the session ends; call Close to stop it.
func New(opts Options) *Workspace {
	bus := opts.Bus
	if bus == nil {
		bus = events.NewEventBus(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	saver := opts.Saver
	if saver == nil {
		saver = DirSaver{Dir: "."}
	}

	status := state.NewStatus(bus, opts.StatusDelay)
	listing := state.NewListing(opts.Client, status, bus, logger)
	w := &Workspace{
		client:    opts.Client,
		session:   opts.Session,
		bus:       bus,
		saver:     saver,
		logger:    logger,
		Status:    status,
		Listing:   listing,
		Transfers: state.NewTransferTracker(bus),
		Rename:    state.NewRenameSession(opts.Client, listing, status, bus, logger),
		ended:     bus.Subscribe(events.EventSessionEnded),
		done:      make(chan struct{}),
	}
	go w.watchSession()
	return w
}

// Bus returns the event bus the workspace publishes on.
func (w *Workspace) Bus() *events.EventBus {
	return w.bus
}

// Session returns the process-wide session.
func (w *Workspace) Session() *session.Session {
	return w.session
}

// Close stops the session watcher. The bus is left open for its owner.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.bus.Unsubscribe(events.EventSessionEnded, w.ended)
	})
}

func (w *Workspace) watchSession() {
	for {
		select {
		case <-w.done:
			return
		case _, ok := <-w.ended:
			if !ok {
				return
			}
			// A login may have landed since the event was published.
			if !w.session.IsAuthenticated() {
				w.teardown()
			}
		}
	}
}

// teardown drops view state that belongs to the ended session.
func (w *Workspace) teardown() {
	w.Rename.Cancel()
	w.Listing.Reset()
}

// Open loads the listing for an authenticated session.
func (w *Workspace) Open(ctx context.Context) error {
	if !w.session.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return w.Listing.Refresh(ctx)
}

// refresh reloads the listing after a mutation. A failed refresh keeps the
// previous set on display and is only logged.
func (w *Workspace) refresh(ctx context.Context) {
	if err := w.Listing.Refresh(ctx); err != nil {
		w.logger.Debug().Err(err).Msg("Refresh after mutation failed")
	}
}

// SetSort applies a header click and reloads.
func (w *Workspace) SetSort(ctx context.Context, column models.SortColumn) (models.SortState, error) {
	return w.Listing.SetSort(ctx, column)
}

// Upload sends paths in one request. The upload control is busy until the
// request settles; a concurrent call returns state.ErrUploadInProgress and
// does nothing else. The server's summary (or a fallback) becomes the status
// message and the listing is refreshed once, whether or not the upload
// succeeded.
func (w *Workspace) Upload(ctx context.Context, paths []string) error {
	tr, err := w.Transfers.BeginUpload(describePaths(paths))
	if err != nil {
		return err
	}

	message, err := w.client.Upload(ctx, paths, tr.Update)
	if err != nil {
		message = apihttp.UserMessage(err, constants.MsgUploadFailed)
		w.logger.Warn().Err(err).Str("operation", tr.ID()).Msg("Upload failed")
	}
	tr.Finish(err, message)
	w.setStatus(err, message)
	w.refresh(ctx)
	return err
}

// Download fetches row id and hands the complete payload to the saver under
// the row's full name. Only one download runs at a time.
func (w *Workspace) Download(ctx context.Context, id models.FileID) (string, error) {
	entry, ok := w.Listing.Lookup(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	return w.DownloadEntry(ctx, entry)
}

// DownloadEntry streams entry into the saver. The saver sees the declared
// size before any byte is read. On failure nothing is saved and the status
// shows a generic message.
func (w *Workspace) DownloadEntry(ctx context.Context, entry models.FileEntry) (string, error) {
	name := entry.FullName()
	tr, err := w.Transfers.BeginDownload(entry.ID, name)
	if err != nil {
		return "", err
	}

	var part PartialFile
	open := func(total int64) (io.Writer, error) {
		p, err := w.saver.Create(name, total)
		if err != nil {
			return nil, err
		}
		part = p
		return p, nil
	}

	var path string
	n, err := w.client.Download(ctx, entry.ID, name, open, tr.Update)
	if err == nil {
		path, err = part.Commit()
	} else if part != nil {
		part.Abort()
	}
	if err != nil {
		w.logger.Warn().Err(err).Stringer("id", entry.ID).Msg("Download failed")
		tr.Finish(err, constants.MsgDownloadFailed)
		w.setStatus(err, constants.MsgDownloadFailed)
		return "", err
	}

	tr.Finish(nil, path)
	w.logger.Debug().Str("path", path).Int64("bytes", n).Msg("Download saved")
	return path, nil
}

// Delete removes row id and then refreshes unconditionally, so the display
// reflects whatever the server actually did.
func (w *Workspace) Delete(ctx context.Context, id models.FileID) error {
	_, err := w.client.Delete(ctx, id)
	if err != nil {
		w.logger.Warn().Err(err).Stringer("id", id).Msg("Delete failed")
		w.setStatus(err, apihttp.UserMessage(err, constants.MsgDeleteFailed))
	}
	w.refresh(ctx)
	return err
}

// BeginRename puts row id into edit mode.
func (w *Workspace) BeginRename(id models.FileID) error {
	entry, ok := w.Listing.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	return w.Rename.Begin(entry)
}

// SubmitRename sends the rename for the row in edit mode.
func (w *Workspace) SubmitRename(ctx context.Context, name string) error {
	return w.Rename.Submit(ctx, name)
}

// CancelRename leaves edit mode.
func (w *Workspace) CancelRename() {
	w.Rename.Cancel()
}

// RenameFile is the one-shot form: begin on id, then submit name.
func (w *Workspace) RenameFile(ctx context.Context, id models.FileID, name string) error {
	if err := w.BeginRename(id); err != nil {
		return err
	}
	return w.SubmitRename(ctx, name)
}

// Login exchanges credentials for a token and stores it in the session.
func (w *Workspace) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	resp, err := w.client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := w.session.Set(resp.Token); err != nil {
		return nil, err
	}
	w.logger.Info().Str("user", creds.Username).Msg("Logged in")
	return resp, nil
}

// Signup registers an account and returns the server's message.
func (w *Workspace) Signup(ctx context.Context, creds models.Credentials) (string, error) {
	return w.client.Signup(ctx, creds)
}

// Logout clears the session and publishes navigation to the entry page.
func (w *Workspace) Logout() error {
	err := w.session.Clear()
	w.teardown()
	w.bus.PublishSessionEnded("logout", events.NavigateEntry)
	return err
}

// setStatus shows message as the transient status. A rejected session is
// reported through the session-ended event instead.
func (w *Workspace) setStatus(err error, message string) {
	if apihttp.IsAuthorization(err) {
		return
	}
	w.Status.Set(message)
}

func describePaths(paths []string) string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return strings.Join(names, ", ")
}
