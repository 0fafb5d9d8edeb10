package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// DefaultInterval is the poll period when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

// Evaluator derives the current status. *patcher.Manager implements it.
type Evaluator interface {
	Evaluate() patcher.Status
}

// Reasons a Change was emitted.
const (
	ReasonInitial = "initial"
	ReasonFile    = "file"
	ReasonPoll    = "poll"
)

// Change is a status transition observed by the Watcher.
type Change struct {
	Time     time.Time
	Reason   string
	Status   patcher.Status
	Previous patcher.Status
}

// ActivityDelta is how much the activity count moved since the previous
// status. A positive delta means the shim was loaded in a new session.
func (c Change) ActivityDelta() int {
	return c.Status.BypassCount - c.Previous.BypassCount
}

// Options configures a Watcher.
type Options struct {
	Interval time.Duration
	OnChange func(Change)
}

// Watcher watches the shim file and polls the rest of the patcher state.
type Watcher struct {
	eval     Evaluator
	dir      string
	name     string
	interval time.Duration
	onChange func(Change)

	mu      sync.Mutex
	last    patcher.Status
	started bool
	stopped bool

	fsw    *fsnotify.Watcher
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Watcher for the shim file at imagePath.
func New(eval Evaluator, imagePath string, opts Options) (*Watcher, error) {
	if eval == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if imagePath == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		eval:     eval,
		dir:      filepath.Dir(imagePath),
		name:     filepath.Base(imagePath),
		interval: interval,
		onChange: opts.OnChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start evaluates once, reports the result as the initial Change, and
// begins watching. When the directory cannot be watched the Watcher keeps
// running on the poll ticker alone.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	w.mu.Unlock()

	st := w.eval.Evaluate()
	w.mu.Lock()
	w.last = st
	w.mu.Unlock()
	w.emit(Change{Time: time.Now(), Reason: ReasonInitial, Status: st})

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("file watching unavailable, polling only")
	} else if err := fsw.Add(w.dir); err != nil {
		log.Warn().Err(err).Str("dir", w.dir).Msg("cannot watch directory, polling only")
		fsw.Close()
	} else {
		w.fsw = fsw
	}

	w.ticker = time.NewTicker(w.interval)

	w.wg.Add(1)
	go w.run()

	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var events chan fsnotify.Event
	var errs chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if strings.EqualFold(filepath.Base(ev.Name), w.name) {
				w.check(ReasonFile)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Err(err).Msg("file watcher error")
		case <-w.ticker.C:
			w.check(ReasonPoll)
		case <-w.stopCh:
			return
		}
	}
}

// check re-evaluates and emits a Change when the status moved.
func (w *Watcher) check(reason string) {
	st := w.eval.Evaluate()

	w.mu.Lock()
	prev := w.last
	changed := Changed(prev, st)
	if changed {
		w.last = st
	}
	w.mu.Unlock()

	if changed {
		log.Debug().Str("reason", reason).
			Str("installed", st.Installed.String()).
			Str("loaded", st.Loaded.String()).
			Int("activity", st.BypassCount).
			Msg("status changed")
		w.emit(Change{Time: time.Now(), Reason: reason, Status: st, Previous: prev})
	}
}

func (w *Watcher) emit(c Change) {
	if w.onChange != nil {
		w.onChange(c)
	}
}

// Current returns the last evaluated status.
func (w *Watcher) Current() patcher.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Stop halts watching and waits for the loop to exit. It is safe to call on
// a Watcher that was never started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started && !w.stopped
	w.stopped = true
	w.mu.Unlock()
	if !started {
		return nil
	}

	close(w.stopCh)
	if w.ticker != nil {
		w.ticker.Stop()
	}
	w.wg.Wait()

	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// Changed reports whether two statuses differ in any field shown to the
// user. File errors are ignored since their text varies between reads.
func Changed(a, b patcher.Status) bool {
	if a.Installed != b.Installed || a.Loaded != b.Loaded || a.BypassCount != b.BypassCount {
		return true
	}
	if a.FileHasContent != b.FileHasContent || a.FileIsSame != b.FileIsSame {
		return true
	}
	for _, t := range patcher.OptionalTargets {
		if a.Hook(t) != b.Hook(t) {
			return true
		}
	}
	return false
}
