// Package progress renders transfer events on the terminal: the upload with a
// progressbar bar, the download with an mpb bar. When output is not a
// terminal it prints one line per transfer start and end instead.
package progress

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/webstorage/storectl/internal/events"
)

// Renderer subscribes to transfer events and draws them.
type Renderer struct {
	bus        *events.EventBus
	out        io.Writer
	isTerminal bool

	ch   <-chan events.Event
	done chan struct{}
	wg   sync.WaitGroup

	uploads   map[string]*uploadBar
	downloads map[string]*downloadBar
}

// fdWriter is satisfied by *os.File and by wrappers that expose the
// underlying descriptor.
type fdWriter interface {
	io.Writer
	Fd() uintptr
}

// NewRenderer creates a renderer writing to out. Bars are drawn only when
// out is a terminal.
func NewRenderer(bus *events.EventBus, out io.Writer) *Renderer {
	isTerminal := false
	if f, ok := out.(fdWriter); ok && term.IsTerminal(int(f.Fd())) {
		isTerminal = true
		enableANSI(f.Fd())
	}
	return &Renderer{
		bus:        bus,
		out:        out,
		isTerminal: isTerminal,
		done:       make(chan struct{}),
		uploads:    make(map[string]*uploadBar),
		downloads:  make(map[string]*downloadBar),
	}
}

// IsTerminal reports whether bars are drawn.
func (r *Renderer) IsTerminal() bool {
	return r.isTerminal
}

// Start begins consuming events in the background.
func (r *Renderer) Start() {
	r.ch = r.bus.SubscribeAll()
	r.wg.Add(1)
	go r.loop()
}

// Stop drains pending events and stops the renderer.
func (r *Renderer) Stop() {
	close(r.done)
	r.wg.Wait()
	r.bus.UnsubscribeAll(r.ch)
}

func (r *Renderer) loop() {
	defer r.wg.Done()
	for {
		select {
		case ev, ok := <-r.ch:
			if !ok {
				return
			}
			r.Handle(ev)
		case <-r.done:
			for {
				select {
				case ev, ok := <-r.ch:
					if !ok {
						return
					}
					r.Handle(ev)
				default:
					return
				}
			}
		}
	}
}

// Handle renders one event. Non-transfer events are ignored.
func (r *Renderer) Handle(ev events.Event) {
	te, ok := ev.(*events.TransferEvent)
	if !ok {
		return
	}
	switch ev.Type() {
	case events.EventTransferStarted:
		r.started(te)
	case events.EventTransferProgress:
		r.progressed(te)
	case events.EventTransferCompleted, events.EventTransferFailed:
		r.ended(te)
	}
}

func (r *Renderer) started(te *events.TransferEvent) {
	if !r.isTerminal {
		verb := "Uploading"
		if te.Kind == "download" {
			verb = "Downloading"
		}
		fmt.Fprintf(r.out, "%s %s\n", verb, te.Name)
		return
	}
	if te.Kind == "download" {
		r.downloads[te.OperationID] = newDownloadBar(r.out, te.Name)
		return
	}
	r.uploads[te.OperationID] = newUploadBar(r.out, te.Name)
}

func (r *Renderer) progressed(te *events.TransferEvent) {
	if up, ok := r.uploads[te.OperationID]; ok {
		up.update(te.BytesDone, te.BytesTotal)
	}
	if dl, ok := r.downloads[te.OperationID]; ok {
		dl.update(te.BytesDone, te.BytesTotal)
	}
}

func (r *Renderer) ended(te *events.TransferEvent) {
	var err error
	if te.Type() == events.EventTransferFailed {
		err = te.Error
		if err == nil {
			err = fmt.Errorf("failed")
		}
	}

	if up, ok := r.uploads[te.OperationID]; ok {
		up.finish(err)
		delete(r.uploads, te.OperationID)
	}
	if dl, ok := r.downloads[te.OperationID]; ok {
		dl.finish(err)
		delete(r.downloads, te.OperationID)
	}
	fmt.Fprintln(r.out, Summary(te))
}

// Summary is the one-line result printed when a transfer ends.
func Summary(te *events.TransferEvent) string {
	arrow := "→"
	if te.Kind == "download" {
		arrow = "←"
	}
	if te.Type() == events.EventTransferFailed {
		return fmt.Sprintf("✗ %s %s", arrow, te.Message)
	}
	size := humanize.IBytes(uint64(te.BytesDone))
	if te.Message != "" {
		return fmt.Sprintf("✓ %s %s (%s)", arrow, te.Message, size)
	}
	return fmt.Sprintf("✓ %s %s (%s)", arrow, te.Name, size)
}

// truncateName shortens long names to max runes, keeping the extension.
func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	ext := []rune(filepath.Ext(name))
	if len(ext) >= max-1 {
		return string(runes[:max-1]) + "…"
	}
	keep := max - len(ext) - 1
	return string(runes[:keep]) + "…" + string(ext)
}
