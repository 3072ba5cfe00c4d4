package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/cache"
	"github.com/memehub/memehub/pkg/logging"
)

// Dispatcher fans events out to sinks from a background worker. Publish never
// blocks the caller: when the buffer is full the event is dropped and logged.
// Sink failures are logged and never propagated.
type Dispatcher struct {
	ch     chan Event
	sinks  []Sink
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher creates a dispatcher with the given buffer size and sinks and
// starts its worker.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		ch:     make(chan Event, buffer),
		sinks:  sinks,
		logger: logging.GetLogger().With(zap.String("component", "event-dispatcher")),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues an event for asynchronous delivery. Never blocks.
func (d *Dispatcher) Publish(event Event) {
	select {
	case d.ch <- event:
	default:
		d.logger.Warn("Event buffer full, dropping event",
			zap.String("type", event.Type),
			zap.String("actor", event.ActorID))
	}
}

// Close stops the worker after draining buffered events.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.ch)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.ch {
		for _, sink := range d.sinks {
			if err := sink.Emit(event); err != nil {
				d.logger.Warn("Event sink failed",
					zap.String("type", event.Type),
					zap.String("actor", event.ActorID),
					zap.Error(err))
			}
		}
	}
}

// LogSink writes events to the application log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink() *LogSink {
	return &LogSink{logger: logging.GetLogger().With(zap.String("component", "event-log-sink"))}
}

// Emit logs the event
func (s *LogSink) Emit(event Event) error {
	s.logger.Info("Domain event",
		zap.String("type", event.Type),
		zap.String("actor", event.ActorID),
		zap.String("target", event.TargetID),
		zap.String("achievement", event.AchievementID),
		zap.Time("at", event.At))
	return nil
}

// RedisSink publishes events on a Redis pub/sub channel for external
// consumers (notification delivery, analytics).
type RedisSink struct {
	cache   *cache.Cache
	channel string
	timeout time.Duration
}

// NewRedisSink creates a Redis pub/sub sink
func NewRedisSink(c *cache.Cache, channel string) *RedisSink {
	return &RedisSink{cache: c, channel: channel, timeout: 2 * time.Second}
}

// Emit publishes the event as JSON
func (s *RedisSink) Emit(event Event) error {
	payload, err := event.JSON()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.cache.Publish(ctx, s.channel, payload)
}
