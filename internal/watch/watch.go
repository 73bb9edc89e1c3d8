// Package watch keeps a project current against its raw source folder. It
// observes filesystem events on the acquisition directory, lets a settle
// window absorb bursts of arriving frames, and then runs a scan-and-process
// pass. A periodic timer backstops missed events.
package watch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

const (
	// DefaultSettle is how long the source folder must stay quiet before a
	// pass starts. Acquisition software writes frames in bursts.
	DefaultSettle = 5 * time.Second

	// DefaultInterval is the periodic backstop between passes.
	DefaultInterval = 10 * time.Minute
)

// TriggerFunc runs one scan-and-process pass. An error is logged, not
// fatal: the next event or tick retries.
type TriggerFunc func(ctx context.Context) error

// Watcher drives TriggerFunc off source folder activity.
type Watcher struct {
	sourceDir string
	settle    time.Duration
	interval  time.Duration
	trigger   TriggerFunc

	logger   *log.Logger
	logLevel LogLevel

	sf      singleflight.Group
	watcher *fsnotify.Watcher
	kick    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Watcher over sourceDir. Zero settle or interval pick the
// defaults.
func New(sourceDir string, settle, interval time.Duration, trigger TriggerFunc, logger *log.Logger, level LogLevel) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		sourceDir: sourceDir,
		settle:    settle,
		interval:  interval,
		trigger:   trigger,
		logger:    logger,
		logLevel:  level,
		kick:      make(chan struct{}, 1),
	}
}

func (w *Watcher) log(level LogLevel, format string, args ...interface{}) {
	if w.logger == nil || level < w.logLevel {
		return
	}
	levelStr := [...]string{"DEBUG", "INFO", "WARN", "ERROR"}[level]
	w.logger.Printf("[%s] %s", levelStr, fmt.Sprintf(format, args...))
}

// Run blocks until ctx is cancelled, running one pass up front and then one
// after each settled burst of source folder activity or interval tick.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.watcher = watcher
	defer watcher.Close()

	if err := watcher.Add(w.sourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.sourceDir, err)
	}
	w.log(LogLevelInfo, "watching dir=%s settle=%s interval=%s", w.sourceDir, w.settle, w.interval)

	w.wg.Add(2)
	go w.fsnotifyLoop(ctx)
	go w.triggerLoop(ctx)

	// Initial pass picks up whatever arrived before the watch started.
	w.runOnce(ctx)

	<-ctx.Done()
	w.wg.Wait()
	return ctx.Err()
}

// fsnotifyLoop converts raw filesystem events into kicks.
func (w *Watcher) fsnotifyLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.log(LogLevelDebug, "fsnotify event=%s file=%s", event.Op, event.Name)
				select {
				case w.kick <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log(LogLevelError, "fsnotify error=%v", err)
		}
	}
}

// triggerLoop owns the settle timer and the periodic ticker. A kick arms
// the timer; further kicks while armed push the deadline out, so a burst of
// arriving frames produces a single pass after the folder goes quiet.
func (w *Watcher) triggerLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	settle := time.NewTimer(w.settle)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()
	armed := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
			if armed && !settle.Stop() {
				<-settle.C
			}
			settle.Reset(w.settle)
			armed = true
		case <-settle.C:
			armed = false
			w.runOnce(ctx)
		case <-ticker.C:
			w.log(LogLevelDebug, "periodic pass triggered")
			w.runOnce(ctx)
		}
	}
}

// runOnce executes one pass. Singleflight collapses a tick landing while an
// event-driven pass is already in flight.
func (w *Watcher) runOnce(ctx context.Context) {
	_, err, shared := w.sf.Do("pass", func() (interface{}, error) {
		return nil, w.trigger(ctx)
	})
	if shared {
		w.log(LogLevelDebug, "pass coalesced with in-flight run")
	}
	if err != nil && ctx.Err() == nil {
		w.log(LogLevelError, "pass failed error=%v", err)
	}
}
