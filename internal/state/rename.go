package state

import (
	"context"
	"sync"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/events"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/logging"
	"github.com/webstorage/storectl/internal/models"
)

// Renamer issues the rename request.
type Renamer interface {
	Rename(ctx context.Context, id models.FileID, name, extension string) (string, error)
}

// Refresher reloads the listing.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// EditSession is the row in edit mode. It is either absent or fully populated.
type EditSession struct {
	FieldID           models.FileID
	OriginalExtension string
	CandidateName     string
}

// RenameSession is the inline rename state machine: Idle -> Editing(id) -> Idle.
// Only one row is ever in edit mode.
type RenameSession struct {
	renamer   Renamer
	refresher Refresher
	status    *Status
	bus       *events.EventBus
	logger    *logging.Logger

	mu         sync.Mutex
	edit       *EditSession // nil when Idle
	submitting bool
}

// NewRenameSession creates an idle rename session. status and bus may be nil.
func NewRenameSession(renamer Renamer, refresher Refresher, status *Status, bus *events.EventBus, logger *logging.Logger) *RenameSession {
	return &RenameSession{
		renamer:   renamer,
		refresher: refresher,
		status:    status,
		bus:       bus,
		logger:    logger,
	}
}

// Current returns the active edit session, if any.
func (r *RenameSession) Current() (EditSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.edit == nil {
		return EditSession{}, false
	}
	return *r.edit, true
}

// Begin puts entry in edit mode with its current name as the candidate.
// Beginning again on the row already being edited restarts its candidate.
func (r *RenameSession) Begin(entry models.FileEntry) error {
	r.mu.Lock()
	if r.submitting || (r.edit != nil && r.edit.FieldID != entry.ID) {
		r.mu.Unlock()
		return ErrEditInProgress
	}
	r.edit = &EditSession{
		FieldID:           entry.ID,
		OriginalExtension: entry.Extension,
		CandidateName:     entry.DisplayName,
	}
	edit := *r.edit
	r.mu.Unlock()

	r.publish(true, edit)
	return nil
}

// SetCandidate updates the name being typed.
func (r *RenameSession) SetCandidate(name string) error {
	r.mu.Lock()
	if r.edit == nil {
		r.mu.Unlock()
		return ErrNotEditing
	}
	r.edit.CandidateName = name
	edit := *r.edit
	r.mu.Unlock()

	r.publish(true, edit)
	return nil
}

// Cancel leaves edit mode without a request. A submit already in flight is
// not affected.
func (r *RenameSession) Cancel() {
	r.mu.Lock()
	if r.edit == nil || r.submitting {
		r.mu.Unlock()
		return
	}
	r.edit = nil
	r.mu.Unlock()

	r.publish(false, EditSession{})
}

// Submit renames the row in edit mode to candidate, keeping its original
// extension. Success or failure, the session returns to Idle and the listing
// is refreshed; a failure also surfaces the server's message unless the
// session was rejected. The rename error is returned for callers that want it.
func (r *RenameSession) Submit(ctx context.Context, candidate string) error {
	r.mu.Lock()
	if r.edit == nil {
		r.mu.Unlock()
		return ErrNotEditing
	}
	if r.submitting {
		r.mu.Unlock()
		return ErrEditInProgress
	}
	r.submitting = true
	r.edit.CandidateName = candidate
	edit := *r.edit
	r.mu.Unlock()

	_, err := r.renamer.Rename(ctx, edit.FieldID, candidate, edit.OriginalExtension)

	r.mu.Lock()
	r.edit = nil
	r.submitting = false
	r.mu.Unlock()
	r.publish(false, EditSession{})

	if err != nil {
		r.logger.Debug().Err(err).Stringer("id", edit.FieldID).Msg("Rename failed")
		if r.status != nil && !apihttp.IsAuthorization(err) {
			r.status.Set(apihttp.UserMessage(err, constants.MsgRenameFailed))
		}
	}

	if rerr := r.refresher.Refresh(ctx); rerr != nil {
		r.logger.Debug().Err(rerr).Msg("Refresh after rename failed")
	}
	return err
}

func (r *RenameSession) publish(editing bool, edit EditSession) {
	if r.bus == nil {
		return
	}
	r.bus.PublishEdit(editing, edit.FieldID, edit.CandidateName, edit.OriginalExtension)
}
