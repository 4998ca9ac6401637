// Package notify implements the Notification Dispatcher (§4 item 8): it
// subscribes to the event bus as an out.EventHandler, filters by the
// categories GUERITE_NOTIFICATIONS enables, batches detect events to at
// most one flush per minute, and forwards everything else immediately to
// whichever transports are configured.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
)

// Transport delivers a single title/message pair to an external system.
// Pushover and webhook both satisfy this; either or both may be nil-safe
// no-ops when unconfigured.
type Transport interface {
	Send(ctx context.Context, title, message string) error
}

// Config selects which event categories reach the configured transports.
type Config struct {
	Categories  map[domain.Category]bool // GUERITE_NOTIFICATIONS, expanded; CategoryAll enables everything
	DetectFlush time.Duration            // batching interval for EventDetect, default 1 minute
}

func (c Config) withDefaults() Config {
	if c.DetectFlush <= 0 {
		c.DetectFlush = time.Minute
	}
	return c
}

func (c Config) enabled(cat domain.Category) bool {
	if c.Categories[domain.CategoryAll] {
		return true
	}
	return c.Categories[cat]
}

// Dispatcher is the Notification Dispatcher use case. It implements
// out.EventHandler so it can subscribe directly to the event bus.
type Dispatcher struct {
	transports []Transport
	cfg        Config
	log        zerowrap.Logger

	mu           sync.Mutex
	detectNames  map[string]struct{}
	flushPending bool

	stop chan struct{}
	done chan struct{}
}

// New creates a Dispatcher. Pass every configured transport; an unconfigured
// transport (missing token/URL) should simply not be included by the
// caller rather than added as a no-op.
func New(cfg Config, log zerowrap.Logger, transports ...Transport) *Dispatcher {
	return &Dispatcher{
		transports:  transports,
		cfg:         cfg.withDefaults(),
		log:         log,
		detectNames: make(map[string]struct{}),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins the background detect-batch flush loop. Call once; Stop
// blocks until the loop has exited.
func (d *Dispatcher) Start() {
	go d.flushLoop()
}

// Stop halts the flush loop, flushing any pending detect batch first.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) flushLoop() {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.DetectFlush)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.flushDetect(context.Background())
		case <-d.stop:
			d.flushDetect(context.Background())
			return
		}
	}
}

// Handle implements out.EventHandler. Every category except detect is
// forwarded immediately if enabled; detect events accumulate for the
// periodic batch flush.
func (d *Dispatcher) Handle(ctx context.Context, event domain.Event) error {
	if !d.cfg.enabled(event.Category) {
		return nil
	}

	if event.Type == domain.EventDetect {
		d.mu.Lock()
		for _, name := range strings.Split(event.Message, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				d.detectNames[name] = struct{}{}
			}
		}
		d.mu.Unlock()
		return nil
	}

	d.send(ctx, event.Title, event.Message)
	return nil
}

func (d *Dispatcher) flushDetect(ctx context.Context) {
	d.mu.Lock()
	if len(d.detectNames) == 0 {
		d.mu.Unlock()
		return
	}
	names := make([]string, 0, len(d.detectNames))
	for n := range d.detectNames {
		names = append(names, n)
	}
	d.detectNames = make(map[string]struct{})
	d.mu.Unlock()

	sort.Strings(names)
	d.send(ctx, "new containers detected", fmt.Sprintf("now monitoring: %s", strings.Join(names, ", ")))
}

func (d *Dispatcher) send(ctx context.Context, title, message string) {
	for _, t := range d.transports {
		if err := t.Send(ctx, title, message); err != nil {
			d.log.Warn().
				Str(zerowrap.FieldLayer, "usecase").
				Str(zerowrap.FieldUseCase, "NotificationDispatcher").
				Err(err).
				Msg("notification transport failed")
		}
	}
}

var _ out.EventHandler = (*Dispatcher)(nil)
