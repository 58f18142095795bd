package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/hyperdrive-race/log"
)

// Server fans out every message read from its source channel to all
// subscribers. A subscriber that does not take a message within the send
// timeout misses that message.
type Server[T any] interface {
	Subscribe() <-chan T
	Unsubscribe(<-chan T)
	// Close stops the server and closes all subscriber channels.
	Close()
	// Done is closed once the server has stopped.
	Done() <-chan struct{}
}

type server[T any] struct {
	name        string
	source      <-chan T
	listeners   []chan T
	addCh       chan chan T
	removeCh    chan (<-chan T)
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	sendTimeout time.Duration
	bufferSize  int
	logger      *log.Logger
	numRcv      atomic.Int64
	numSnd      atomic.Int64
	numSkip     atomic.Int64
	numListener atomic.Int64
}

type Option[T any] func(*server[T])

// WithSendTimeout sets how long a slow subscriber may block a message.
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(s *server[T]) {
		s.sendTimeout = d
	}
}

// WithBufferSize sets the capacity of subscriber channels.
func WithBufferSize[T any](n int) Option[T] {
	return func(s *server[T]) {
		s.bufferSize = n
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(s *server[T]) {
		s.logger = l
	}
}

// NewServer starts serving source. The server stops when source is closed
// or Close is called.
func NewServer[T any](name string, source <-chan T, opts ...Option[T]) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &server[T]{
		name:        name,
		source:      source,
		addCh:       make(chan chan T),
		removeCh:    make(chan (<-chan T)),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		sendTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default().Named("broadcast")
	}
	s.setupMetrics()
	go s.serve()
	return s
}

func (s *server[T]) Subscribe() <-chan T {
	ch := make(chan T, s.bufferSize)
	select {
	case s.addCh <- ch:
	case <-s.done:
		close(ch)
	}
	return ch
}

func (s *server[T]) Unsubscribe(ch <-chan T) {
	select {
	case s.removeCh <- ch:
	case <-s.done:
	}
}

func (s *server[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *server[T]) Done() <-chan struct{} {
	return s.done
}

func (s *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("hdr.broadcast.%s", s.name))
	attrs := metric.WithAttributes(attribute.String("name", s.name))
	gauges := []struct {
		name  string
		desc  string
		value *atomic.Int64
	}{
		{"hdr.broadcast.rcv", "Number of received messages", &s.numRcv},
		{"hdr.broadcast.snd", "Number of sent messages", &s.numSnd},
		{"hdr.broadcast.skip", "Number of skipped messages", &s.numSkip},
		{"hdr.broadcast.listener", "Number of listeners", &s.numListener},
	}
	for _, g := range gauges {
		value := g.value
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(), attrs)
				return nil
			})); err != nil {
			s.logger.Error("failed to register metric",
				log.String("metric", g.name), log.ErrorField(err))
		}
	}
}

//nolint:cyclop // select loop
func (s *server[T]) serve() {
	defer func() {
		for _, l := range s.listeners {
			close(l)
		}
		s.listeners = nil
		s.numListener.Store(0)
		s.logger.Info("broadcast server stopped",
			log.String("name", s.name),
			log.Int("rcv", int(s.numRcv.Load())),
			log.Int("snd", int(s.numSnd.Load())),
			log.Int("skip", int(s.numSkip.Load())))
		close(s.done)
	}()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ch := <-s.addCh:
			s.listeners = append(s.listeners, ch)
			s.numListener.Store(int64(len(s.listeners)))
		case ch := <-s.removeCh:
			for i, l := range s.listeners {
				if l == ch {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					close(l)
					break
				}
			}
			s.numListener.Store(int64(len(s.listeners)))
		case msg, ok := <-s.source:
			if !ok {
				return
			}
			s.numRcv.Add(1)
			s.fanOut(msg)
		}
	}
}

func (s *server[T]) fanOut(msg T) {
	for _, l := range s.listeners {
		select {
		case l <- msg:
			s.numSnd.Add(1)
		case <-time.After(s.sendTimeout):
			s.numSkip.Add(1)
			s.logger.Debug("skipping slow listener", log.String("name", s.name))
		case <-s.ctx.Done():
			return
		}
	}
}
