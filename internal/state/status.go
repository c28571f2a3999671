package state

import (
	"sync"
	"time"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/events"
)

// Status is the transient one-line message shown above the listing.
type Status struct {
	mu      sync.Mutex
	message string
	gen     uint64 // bumped by every Set
	delay   time.Duration
	bus     *events.EventBus
}

// NewStatus creates a status line. delay <= 0 uses the default 5 seconds.
func NewStatus(bus *events.EventBus, delay time.Duration) *Status {
	if delay <= 0 {
		delay = constants.StatusClearDelay
	}
	return &Status{bus: bus, delay: delay}
}

// Message returns the current message, "" when clear.
func (s *Status) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Set replaces the message. Any pending auto-clear for the previous message
// becomes a no-op.
func (s *Status) Set(message string) {
	s.mu.Lock()
	s.message = message
	s.gen++
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.PublishStatus(message)
	}
}

// ScheduleClear clears the message currently shown after the delay, unless
// it has been replaced by then.
func (s *Status) ScheduleClear() {
	s.mu.Lock()
	if s.message == "" {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.mu.Unlock()

	time.AfterFunc(s.delay, func() {
		s.clearIf(gen)
	})
}

func (s *Status) clearIf(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.message == "" {
		s.mu.Unlock()
		return
	}
	s.message = ""
	s.gen++
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.PublishStatus("")
	}
}
