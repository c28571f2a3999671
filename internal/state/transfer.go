package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/webstorage/storectl/internal/events"
	"github.com/webstorage/storectl/internal/models"
)

// TransferKind distinguishes uploads from downloads.
type TransferKind string

const (
	KindUpload   TransferKind = "upload"
	KindDownload TransferKind = "download"
)

// Progress is a snapshot of one transfer slot. An idle slot has Active false
// and Percent 0.
type Progress struct {
	Kind        TransferKind
	Active      bool
	OperationID string
	TargetID    models.FileID
	HasTarget   bool
	Name        string
	Percent     int
	BytesDone   int64
	BytesTotal  int64
}

// TransferTracker tracks at most one upload and at most one download. The two
// slots are independent of each other and of the listing.
type TransferTracker struct {
	mu       sync.Mutex
	upload   Progress
	download Progress
	bus      *events.EventBus
}

// NewTransferTracker creates a tracker with both slots idle. bus may be nil.
func NewTransferTracker(bus *events.EventBus) *TransferTracker {
	return &TransferTracker{
		upload:   Progress{Kind: KindUpload},
		download: Progress{Kind: KindDownload},
		bus:      bus,
	}
}

// Upload returns the upload slot.
func (t *TransferTracker) Upload() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upload
}

// Download returns the download slot.
func (t *TransferTracker) Download() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.download
}

// UploadBusy reports whether the upload control should be disabled.
func (t *TransferTracker) UploadBusy() bool {
	return t.Upload().Active
}

// ActiveDownload returns the row currently being downloaded.
func (t *TransferTracker) ActiveDownload() (models.FileID, bool) {
	d := t.Download()
	return d.TargetID, d.Active
}

// BeginUpload claims the upload slot. name describes the file set for display.
func (t *TransferTracker) BeginUpload(name string) (*Transfer, error) {
	t.mu.Lock()
	if t.upload.Active {
		t.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	t.upload = Progress{Kind: KindUpload, Active: true, OperationID: uuid.NewString(), Name: name}
	snapshot := t.upload
	t.mu.Unlock()

	t.publish(events.EventTransferStarted, snapshot, "", nil)
	return &Transfer{tracker: t, kind: KindUpload, id: snapshot.OperationID}, nil
}

// BeginDownload claims the download slot for row id. Refused while any
// download is active, whatever its target.
func (t *TransferTracker) BeginDownload(id models.FileID, name string) (*Transfer, error) {
	t.mu.Lock()
	if t.download.Active {
		t.mu.Unlock()
		return nil, ErrDownloadInProgress
	}
	t.download = Progress{
		Kind:        KindDownload,
		Active:      true,
		OperationID: uuid.NewString(),
		TargetID:    id,
		HasTarget:   true,
		Name:        name,
	}
	snapshot := t.download
	t.mu.Unlock()

	t.publish(events.EventTransferStarted, snapshot, "", nil)
	return &Transfer{tracker: t, kind: KindDownload, id: snapshot.OperationID}, nil
}

func (t *TransferTracker) slot(kind TransferKind) *Progress {
	if kind == KindUpload {
		return &t.upload
	}
	return &t.download
}

func (t *TransferTracker) publish(et events.EventType, p Progress, message string, err error) {
	if t.bus == nil {
		return
	}
	t.bus.PublishTransfer(et, events.TransferEvent{
		OperationID: p.OperationID,
		Kind:        string(p.Kind),
		TargetID:    p.TargetID,
		HasTarget:   p.HasTarget,
		Name:        p.Name,
		Percent:     p.Percent,
		BytesDone:   p.BytesDone,
		BytesTotal:  p.BytesTotal,
		Message:     message,
		Error:       err,
	})
}

// Transfer is the handle for one claimed slot. Updates from a handle whose
// operation has already finished are ignored.
type Transfer struct {
	tracker *TransferTracker
	kind    TransferKind
	id      string
}

// ID returns the operation ID.
func (tr *Transfer) ID() string {
	return tr.id
}

// percentOf maps done/total to 0..100, rounding to nearest. An unknown total
// reports 0.
func percentOf(done, total int64) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int((done*100 + total/2) / total)
}

// Update records bytes transferred. Percent never decreases within a transfer.
func (tr *Transfer) Update(done, total int64) {
	t := tr.tracker
	t.mu.Lock()
	p := t.slot(tr.kind)
	if !p.Active || p.OperationID != tr.id {
		t.mu.Unlock()
		return
	}
	if done > p.BytesDone {
		p.BytesDone = done
	}
	p.BytesTotal = total
	percent := percentOf(p.BytesDone, total)
	changed := percent > p.Percent
	if changed {
		p.Percent = percent
	}
	snapshot := *p
	t.mu.Unlock()

	if changed {
		t.publish(events.EventTransferProgress, snapshot, "", nil)
	}
}

// Finish releases the slot and resets its percent to 0. err nil means
// success. message is what the user is shown.
func (tr *Transfer) Finish(err error, message string) {
	t := tr.tracker
	t.mu.Lock()
	p := t.slot(tr.kind)
	if !p.Active || p.OperationID != tr.id {
		t.mu.Unlock()
		return
	}
	final := *p
	if err == nil {
		final.Percent = 100
	}
	*p = Progress{Kind: tr.kind}
	t.mu.Unlock()

	if err != nil {
		t.publish(events.EventTransferFailed, final, message, err)
		return
	}
	t.publish(events.EventTransferCompleted, final, message, nil)
}
