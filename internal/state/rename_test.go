package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/webstorage/storectl/internal/constants"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/logging"
	"github.com/webstorage/storectl/internal/models"
)

type renameCall struct {
	id        models.FileID
	name, ext string
}

type fakeRenamer struct {
	mu    sync.Mutex
	calls []renameCall
	err   error
}

func (f *fakeRenamer) Rename(ctx context.Context, id models.FileID, name, extension string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, renameCall{id, name, extension})
	return "", f.err
}

type countingRefresher struct {
	mu sync.Mutex
	n  int
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newRenameFixture(err error) (*RenameSession, *fakeRenamer, *countingRefresher, *Status) {
	renamer := &fakeRenamer{err: err}
	refresher := &countingRefresher{}
	status := NewStatus(nil, 0)
	return NewRenameSession(renamer, refresher, status, nil, logging.NewNopLogger()), renamer, refresher, status
}

var (
	rowA = models.FileEntry{ID: 7, DisplayName: "draft", Extension: ".pdf"}
	rowB = models.FileEntry{ID: 8, DisplayName: "notes", Extension: ".txt"}
)

func TestBeginCapturesRow(t *testing.T) {
	session, _, _, _ := newRenameFixture(nil)
	if err := session.Begin(rowA); err != nil {
		t.Fatal(err)
	}
	edit, ok := session.Current()
	if !ok {
		t.Fatal("expected an edit session")
	}
	want := EditSession{FieldID: 7, OriginalExtension: ".pdf", CandidateName: "draft"}
	if edit != want {
		t.Errorf("edit = %+v, want %+v", edit, want)
	}
}

func TestOnlyOneRowInEditMode(t *testing.T) {
	session, _, _, _ := newRenameFixture(nil)
	if err := session.Begin(rowA); err != nil {
		t.Fatal(err)
	}
	if err := session.Begin(rowB); !errors.Is(err, ErrEditInProgress) {
		t.Errorf("Begin(B) = %v, want ErrEditInProgress", err)
	}
	edit, _ := session.Current()
	if edit.FieldID != rowA.ID {
		t.Errorf("edit moved to %v", edit.FieldID)
	}

	if err := session.Begin(rowA); err != nil {
		t.Errorf("Begin on the row already in edit mode = %v", err)
	}
}

func TestSubmitSuccess(t *testing.T) {
	session, renamer, refresher, status := newRenameFixture(nil)
	session.Begin(rowA)

	if err := session.Submit(context.Background(), "report"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(renamer.calls) != 1 || renamer.calls[0] != (renameCall{7, "report", ".pdf"}) {
		t.Errorf("rename calls = %+v", renamer.calls)
	}
	if _, ok := session.Current(); ok {
		t.Error("edit session should be cleared")
	}
	if refresher.count() != 1 {
		t.Errorf("refreshes = %d, want 1", refresher.count())
	}
	if status.Message() != "" {
		t.Errorf("status = %q, want none on success", status.Message())
	}
}

func TestSubmitFailureStillRefreshes(t *testing.T) {
	serverErr := &apihttp.RequestError{Kind: apihttp.KindValidation, StatusCode: 400, Message: "Can't find an entry."}
	session, _, refresher, status := newRenameFixture(serverErr)
	session.Begin(rowB)

	err := session.Submit(context.Background(), "renamed")
	if !errors.Is(err, serverErr) {
		t.Errorf("Submit = %v, want server error", err)
	}
	if _, ok := session.Current(); ok {
		t.Error("edit session should return to Idle after failure")
	}
	if refresher.count() != 1 {
		t.Errorf("refreshes = %d, want 1", refresher.count())
	}
	if status.Message() != "Can't find an entry." {
		t.Errorf("status = %q", status.Message())
	}
}

func TestSubmitTransportFailureUsesFallbackMessage(t *testing.T) {
	session, _, _, status := newRenameFixture(apihttp.Transport(errors.New("connection refused")))
	session.Begin(rowB)
	session.Submit(context.Background(), "x")

	if status.Message() != constants.MsgRenameFailed {
		t.Errorf("status = %q, want %q", status.Message(), constants.MsgRenameFailed)
	}
}

func TestSubmitRejectedSessionLeavesStatus(t *testing.T) {
	expired := &apihttp.RequestError{Kind: apihttp.KindAuthorization, StatusCode: 401, Message: "token is expired"}
	session, _, refresher, status := newRenameFixture(expired)
	session.Begin(rowB)
	session.Submit(context.Background(), "x")

	if status.Message() != "" {
		t.Errorf("status = %q, want none after a rejected session", status.Message())
	}
	if _, editing := session.Current(); editing {
		t.Error("session should be idle")
	}
	if refresher.count() != 1 {
		t.Errorf("refreshes = %d, want 1", refresher.count())
	}
}

func TestSubmitAndCandidateWithoutEditing(t *testing.T) {
	session, renamer, refresher, _ := newRenameFixture(nil)
	if err := session.Submit(context.Background(), "x"); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Submit = %v, want ErrNotEditing", err)
	}
	if err := session.SetCandidate("x"); !errors.Is(err, ErrNotEditing) {
		t.Errorf("SetCandidate = %v, want ErrNotEditing", err)
	}
	if len(renamer.calls) != 0 || refresher.count() != 0 {
		t.Error("no request or refresh expected")
	}
}

func TestCancel(t *testing.T) {
	session, renamer, _, _ := newRenameFixture(nil)
	session.Begin(rowA)
	session.SetCandidate("typed")
	session.Cancel()

	if _, ok := session.Current(); ok {
		t.Error("Cancel should return to Idle")
	}
	if len(renamer.calls) != 0 {
		t.Error("Cancel must not send a request")
	}
	if err := session.Begin(rowB); err != nil {
		t.Errorf("Begin after Cancel = %v", err)
	}
}
