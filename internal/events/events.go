// Package events carries workspace state changes to whatever renders them
// (progress bars, the interactive shell, tests).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventListingChanged EventType = "listing_changed" // A refresh response was applied
	EventListingFailed  EventType = "listing_failed"  // A refresh failed (display keeps the previous set)
	EventSortChanged    EventType = "sort_changed"
	EventStatus         EventType = "status"       // Transient user-visible message set or cleared
	EventEditChanged    EventType = "edit_changed" // Rename edit mode entered or left
	EventSessionEnded   EventType = "session_ended"

	EventTransferStarted   EventType = "transfer_started"
	EventTransferProgress  EventType = "transfer_progress"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
)

// Navigation targets carried by SessionEvent.
const (
	NavigateEntry = "entry"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// ListingEvent reports the file set now on display.
type ListingEvent struct {
	BaseEvent
	Seq   uint64
	Sort  models.SortState
	Files []models.FileEntry
	Error error
}

// SortEvent reports a sort state transition.
type SortEvent struct {
	BaseEvent
	Sort models.SortState
}

// StatusEvent reports the transient status line. Empty Message means cleared.
type StatusEvent struct {
	BaseEvent
	Message string
}

// EditEvent reports rename edit mode. Editing false means the row returned to Idle.
type EditEvent struct {
	BaseEvent
	Editing       bool
	FieldID       models.FileID
	CandidateName string
	Extension     string
}

// SessionEvent reports that the session was terminated and where to navigate.
type SessionEvent struct {
	BaseEvent
	Reason   string
	Navigate string
}

// TransferEvent reports upload and download lifecycle and progress.
type TransferEvent struct {
	BaseEvent
	OperationID string // Unique per transfer
	Kind        string // "upload" or "download"
	TargetID    models.FileID
	HasTarget   bool
	Name        string
	Percent     int // 0 to 100
	BytesDone   int64
	BytesTotal  int64
	Message     string
	Error       error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// A full subscriber drops the event and bumps the dropped counter.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishStatus publishes the transient status line.
func (eb *EventBus) PublishStatus(message string) {
	eb.Publish(&StatusEvent{BaseEvent: base(EventStatus), Message: message})
}

// PublishListing publishes the file set applied by refresh seq.
func (eb *EventBus) PublishListing(seq uint64, sort models.SortState, files []models.FileEntry) {
	eb.Publish(&ListingEvent{BaseEvent: base(EventListingChanged), Seq: seq, Sort: sort, Files: files})
}

// PublishListingFailed publishes a failed refresh.
func (eb *EventBus) PublishListingFailed(seq uint64, sort models.SortState, err error) {
	eb.Publish(&ListingEvent{BaseEvent: base(EventListingFailed), Seq: seq, Sort: sort, Error: err})
}

// PublishSort publishes a sort state transition.
func (eb *EventBus) PublishSort(sort models.SortState) {
	eb.Publish(&SortEvent{BaseEvent: base(EventSortChanged), Sort: sort})
}

// PublishEdit publishes a rename edit-mode transition.
func (eb *EventBus) PublishEdit(editing bool, id models.FileID, candidate, ext string) {
	eb.Publish(&EditEvent{
		BaseEvent:     base(EventEditChanged),
		Editing:       editing,
		FieldID:       id,
		CandidateName: candidate,
		Extension:     ext,
	})
}

// PublishSessionEnded publishes session termination with a navigation target.
func (eb *EventBus) PublishSessionEnded(reason, navigate string) {
	eb.Publish(&SessionEvent{BaseEvent: base(EventSessionEnded), Reason: reason, Navigate: navigate})
}

// PublishTransfer publishes a transfer lifecycle event of type t.
func (eb *EventBus) PublishTransfer(t EventType, ev TransferEvent) {
	ev.BaseEvent = base(t)
	eb.Publish(&ev)
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
