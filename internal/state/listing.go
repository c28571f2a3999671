// Package state holds the workspace's observable state containers: the file
// listing, the status line, transfer progress and the rename edit session.
// Each container is safe for concurrent use and publishes changes on the
// event bus.
package state

import (
	"context"
	"sync"

	"github.com/webstorage/storectl/internal/events"
	"github.com/webstorage/storectl/internal/logging"
	"github.com/webstorage/storectl/internal/models"
)

// Lister fetches the file set in server order.
type Lister interface {
	ListFiles(ctx context.Context, sort models.SortState) ([]models.FileEntry, error)
}

// Listing holds the displayed file set and the active sort.
//
// Every refresh takes a sequence number when issued; a response is applied
// only if no later refresh has been issued since, so a slow stale response
// never overwrites a newer one.
type Listing struct {
	lister Lister
	bus    *events.EventBus
	status *Status
	logger *logging.Logger

	mu      sync.RWMutex
	files   []models.FileEntry
	sort    models.SortState
	issued  uint64
	applied uint64
	loaded  bool
}

// NewListing creates an empty listing sorted by name ascending. status and bus may be nil.
func NewListing(lister Lister, status *Status, bus *events.EventBus, logger *logging.Logger) *Listing {
	return &Listing{
		lister: lister,
		bus:    bus,
		status: status,
		logger: logger,
		files:  []models.FileEntry{},
		sort:   models.DefaultSort(),
	}
}

// Files returns a copy of the displayed file set, in server order.
func (l *Listing) Files() []models.FileEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]models.FileEntry, len(l.files))
	copy(result, l.files)
	return result
}

// Sort returns the active sort state.
func (l *Listing) Sort() models.SortState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sort
}

// Loaded reports whether any refresh has been applied yet.
func (l *Listing) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// AppliedSeq returns the sequence number of the refresh currently displayed.
func (l *Listing) AppliedSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.applied
}

// Lookup finds a displayed entry by ID.
func (l *Listing) Lookup(id models.FileID) (models.FileEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, f := range l.files {
		if f.ID == id {
			return f, true
		}
	}
	return models.FileEntry{}, false
}

// Refresh fetches the file set under the current sort and replaces the
// displayed set with the response verbatim. A response superseded by a later
// refresh is discarded and Refresh returns nil. On failure the displayed set
// is kept and the error is returned.
func (l *Listing) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.issued++
	seq := l.issued
	sort := l.sort
	l.mu.Unlock()

	return l.fetch(ctx, seq, sort)
}

// SetSort applies a header click on column and refreshes under the new sort.
func (l *Listing) SetSort(ctx context.Context, column models.SortColumn) (models.SortState, error) {
	l.mu.Lock()
	l.sort = l.sort.Toggle(column)
	sort := l.sort
	l.issued++
	seq := l.issued
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.PublishSort(sort)
	}
	return sort, l.fetch(ctx, seq, sort)
}

// ApplySort replaces the sort state outright and refreshes. Used when the
// order is given up front (ls --sort) rather than by header clicks.
func (l *Listing) ApplySort(ctx context.Context, sort models.SortState) error {
	l.mu.Lock()
	l.sort = sort
	l.issued++
	seq := l.issued
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.PublishSort(sort)
	}
	return l.fetch(ctx, seq, sort)
}

func (l *Listing) fetch(ctx context.Context, seq uint64, sort models.SortState) error {
	files, err := l.lister.ListFiles(ctx, sort)

	l.mu.Lock()
	if seq != l.issued {
		latest := l.issued
		l.mu.Unlock()
		l.logger.Debug().Uint64("seq", seq).Uint64("latest", latest).Msg("Discarding superseded listing response")
		return nil
	}
	if err != nil {
		l.mu.Unlock()
		l.logger.Debug().Err(err).Uint64("seq", seq).Msg("Listing refresh failed")
		if l.bus != nil {
			l.bus.PublishListingFailed(seq, sort, err)
		}
		return err
	}
	l.files = files
	l.applied = seq
	l.loaded = true
	snapshot := make([]models.FileEntry, len(files))
	copy(snapshot, files)
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.PublishListing(seq, sort, snapshot)
	}
	if l.status != nil {
		l.status.ScheduleClear()
	}
	return nil
}

// Reset empties the listing and restores the default sort. Used on logout.
func (l *Listing) Reset() {
	l.mu.Lock()
	l.issued++ // in-flight responses are now stale
	l.files = []models.FileEntry{}
	l.sort = models.DefaultSort()
	l.loaded = false
	l.applied = 0
	l.mu.Unlock()
}
