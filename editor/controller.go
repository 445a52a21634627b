// Package editor owns an editor session: the text buffer and the status of the
// single repair or export operation that may be in flight.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coolboyler/md2word/delivery"
	"github.com/coolboyler/md2word/document"
	"github.com/coolboyler/md2word/generator"
)

// Status is the state of the current or most recent operation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// DefaultRevertDelay is how long success and error stay visible.
const DefaultRevertDelay = 3 * time.Second

// ErrBusy is returned when an operation is triggered while another is processing.
var ErrBusy = errors.New("operation already in progress")

// Transformer is the gateway contract the controller depends on.
type Transformer interface {
	Execute(ctx context.Context, kind generator.Kind, source string) (generator.Result, error)
}

// ExportSettings controls how converted documents are named and delivered.
type ExportSettings struct {
	Title     string
	Filename  string
	MediaType string
}

// DefaultExport matches what Word expects for HTML-flavoured .doc files.
var DefaultExport = ExportSettings{
	Title:     "Exported Document",
	Filename:  delivery.ExportFilename,
	MediaType: delivery.ExportMediaType,
}

// State is a snapshot of the controller.
type State struct {
	Buffer  string `json:"markdown"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Epoch   uint64 `json:"epoch"`
}

// Controller is the operation state machine for one editor.
//
// idle -> processing -> success|error -> (after the revert delay) idle.
// Every transition bumps the epoch; a revert scheduled under an older epoch
// does nothing when it fires.
type Controller struct {
	gateway   Transformer
	deliverer delivery.Deliverer
	sched     Scheduler
	logger    *log.Logger
	verbose   bool
	delay     time.Duration
	export    ExportSettings
	events    *EventBus

	mu      sync.Mutex
	buffer  string
	status  Status
	message string
	kind    string
	epoch   uint64
	revert  Timer
}

// Option customizes a Controller.
type Option func(*Controller)

// WithBuffer sets the initial buffer (default DefaultSample).
func WithBuffer(text string) Option {
	return func(c *Controller) { c.buffer = text }
}

// WithRevertDelay sets how long terminal statuses stay before returning to idle.
func WithRevertDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithScheduler replaces the timer source used for the revert to idle.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithLogger sets the logger; verbose enables [INFO] lines.
func WithLogger(logger *log.Logger, verbose bool) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
		c.verbose = verbose
	}
}

// WithExport overrides non-empty export settings.
func WithExport(s ExportSettings) Option {
	return func(c *Controller) {
		if s.Title != "" {
			c.export.Title = s.Title
		}
		if s.Filename != "" {
			c.export.Filename = s.Filename
		}
		if s.MediaType != "" {
			c.export.MediaType = s.MediaType
		}
	}
}

// WithEvents shares an event bus with the caller.
func WithEvents(bus *EventBus) Option {
	return func(c *Controller) {
		if bus != nil {
			c.events = bus
		}
	}
}

// New creates a controller in idle state.
func New(gateway Transformer, deliverer delivery.Deliverer, opts ...Option) (*Controller, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if deliverer == nil {
		return nil, errors.New("deliverer is required")
	}
	c := &Controller{
		gateway:   gateway,
		deliverer: deliverer,
		sched:     timeScheduler{},
		logger:    log.Default(),
		delay:     DefaultRevertDelay,
		export:    DefaultExport,
		buffer:    DefaultSample,
		status:    StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = NewEventBus(0)
	}
	return c, nil
}

func (c *Controller) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

// Buffer returns the current text.
func (c *Controller) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

// SetBuffer replaces the text. Edits are accepted in any state; a repair that
// is still running will overwrite them when it completes.
func (c *Controller) SetBuffer(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = text
	c.events.Publish(Event{Type: EventTypeBuffer, Epoch: c.epoch})
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Buffer:  c.buffer,
		Status:  c.status,
		Message: c.message,
		Kind:    c.kind,
		Epoch:   c.epoch,
	}
}

// Events returns events newer than seq.
func (c *Controller) Events(since int64) []Event {
	return c.events.Since(since)
}

// Trigger starts an operation on the current buffer and returns a channel that
// is closed once it has settled. While another operation is processing it
// returns ErrBusy and does nothing.
func (c *Controller) Trigger(ctx context.Context, kind generator.Kind) (<-chan struct{}, error) {
	if kind != generator.Repair && kind != generator.Convert {
		return nil, fmt.Errorf("unsupported operation %s", kind)
	}

	c.mu.Lock()
	if c.status == StatusProcessing {
		running := c.kind
		c.mu.Unlock()
		c.infof("%s ignored: %s already processing", kind, running)
		return nil, ErrBusy
	}
	source := c.buffer
	c.transitionLocked(StatusProcessing, kind, processingMessage(kind))
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(ctx, kind, source)
	}()
	return done, nil
}

// Run triggers kind and waits for it to settle. Operation failures end up in
// the status, not in the returned error, which is only ErrBusy or a bad kind.
func (c *Controller) Run(ctx context.Context, kind generator.Kind) error {
	done, err := c.Trigger(ctx, kind)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// Repair runs the repair operation to completion.
func (c *Controller) Repair(ctx context.Context) error { return c.Run(ctx, generator.Repair) }

// Convert runs the export operation to completion.
func (c *Controller) Convert(ctx context.Context) error { return c.Run(ctx, generator.Convert) }

func (c *Controller) run(ctx context.Context, kind generator.Kind, source string) {
	res, err := c.execute(ctx, kind, source)
	if err == nil && kind == generator.Convert {
		err = c.deliver(res.Text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Printf("[ERROR] %s: %v", kind, err)
		c.transitionLocked(StatusError, kind, failureMessage(kind))
	} else {
		if kind == generator.Repair {
			c.buffer = res.Text
		}
		c.transitionLocked(StatusSuccess, kind, successMessage(kind))
	}
	c.scheduleRevertLocked()
}

// execute calls the gateway and turns a panic into a Failure.
func (c *Controller) execute(ctx context.Context, kind generator.Kind, source string) (res generator.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &generator.Failure{Op: kind, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return c.gateway.Execute(ctx, kind, source)
}

func (c *Controller) deliver(fragment string) error {
	stats := generator.FragmentStats(fragment)
	c.infof("convert: fragment has %d math elements, %d images", stats.Math, stats.Images)
	if stats.Images > 0 && stats.Math == 0 {
		c.logger.Printf("[WARN] convert: fragment has images but no MathML; equations may not be editable")
	}

	payload := document.Assemble(fragment, c.export.Title)
	if err := c.deliverer.Deliver(payload, c.export.Filename, c.export.MediaType); err != nil {
		return fmt.Errorf("delivering %s: %w", c.export.Filename, err)
	}
	c.infof("convert: delivered %s (%d bytes)", c.export.Filename, len(payload))
	return nil
}

// transitionLocked moves to status and invalidates any pending revert.
func (c *Controller) transitionLocked(status Status, kind generator.Kind, message string) {
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
	c.epoch++
	c.status = status
	c.message = message
	c.kind = kind.String()
	c.events.Publish(Event{
		Type:    EventTypeStatus,
		Status:  status,
		Kind:    c.kind,
		Message: message,
		Epoch:   c.epoch,
	})
}

func (c *Controller) scheduleRevertLocked() {
	epoch := c.epoch
	c.revert = c.sched.AfterFunc(c.delay, func() { c.revertToIdle(epoch) })
}

func (c *Controller) revertToIdle(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	if c.status != StatusSuccess && c.status != StatusError {
		return
	}
	c.revert = nil
	c.epoch++
	c.status = StatusIdle
	c.message = ""
	c.events.Publish(Event{Type: EventTypeStatus, Status: StatusIdle, Kind: c.kind, Epoch: c.epoch})
}

func processingMessage(kind generator.Kind) string {
	if kind == generator.Repair {
		return "AI is analyzing and fixing your LaTeX..."
	}
	return "Converting to Word compatible format..."
}

func successMessage(kind generator.Kind) string {
	if kind == generator.Repair {
		return "Content repaired successfully!"
	}
	return "Download started!"
}

func failureMessage(kind generator.Kind) string {
	if kind == generator.Repair {
		return "Failed to repair content. Check API Key."
	}
	return "Export failed. Please try again."
}
