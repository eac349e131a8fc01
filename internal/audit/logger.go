// Package audit records security events. Recording never blocks or fails the
// request path: events are queued to a bounded buffer, dropped when it is full,
// and written to sinks by a single background worker.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"siteauth/backend/internal/audit/domain"
)

// Recorder is what auth code paths depend on. Implementations must be safe for
// concurrent use and must not block.
type Recorder interface {
	Record(ctx context.Context, name domain.EventName, accountID string, metadata map[string]string)
}

// Sink writes one event. Errors are logged by the Logger and otherwise ignored.
type Sink interface {
	Write(ctx context.Context, ev domain.SecurityEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev domain.SecurityEvent) error

func (f SinkFunc) Write(ctx context.Context, ev domain.SecurityEvent) error { return f(ctx, ev) }

// sinkTimeout bounds a single sink write.
const sinkTimeout = 5 * time.Second

// Logger is the asynchronous Recorder.
type Logger struct {
	sinks     []Sink
	log       zerolog.Logger
	now       func() time.Time
	ch        chan domain.SecurityEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewLogger starts the worker. bufferSize <= 0 selects 1024. log receives sink
// failures only.
func NewLogger(bufferSize int, log zerolog.Logger, sinks ...Sink) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	l := &Logger{
		sinks: sinks,
		log:   log,
		now:   time.Now,
		ch:    make(chan domain.SecurityEvent, bufferSize),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Record enqueues an event. Severity comes from the catalogue and the client
// IP from ctx. When the buffer is full the event is dropped and counted.
func (l *Logger) Record(ctx context.Context, name domain.EventName, accountID string, metadata map[string]string) {
	if l == nil || l.closed.Load() {
		return
	}
	ev := domain.SecurityEvent{
		Name:      name,
		Severity:  domain.SeverityOf(name),
		AccountID: accountID,
		ClientIP:  ClientIPFromContext(ctx),
		Metadata:  metadata,
		Timestamp: l.now().UTC(),
	}
	select {
	case l.ch <- ev:
	case <-l.done:
	default:
		l.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close stops accepting events and drains the buffer. It returns early when
// ctx is done; remaining events are then lost.
func (l *Logger) Close(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) run() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.ch:
			l.write(ev)
		case <-l.done:
			for {
				select {
				case ev := <-l.ch:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(ev domain.SecurityEvent) {
	for _, s := range l.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := safeWrite(ctx, s, ev)
		cancel()
		if err != nil {
			l.log.Warn().Err(err).Str("event", string(ev.Name)).Msg("audit: sink write failed")
		}
	}
}

func safeWrite(ctx context.Context, s Sink, ev domain.SecurityEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return s.Write(ctx, ev)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "sink panic" }

// Nop discards events. Useful where a Recorder is required but nothing should be recorded.
type Nop struct{}

func (Nop) Record(context.Context, domain.EventName, string, map[string]string) {}
