package commentary

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/timer"
)

const (
	DefaultCooldown = 6 * time.Second
	DefaultTimeout  = 10 * time.Second

	InitialText   = "SYSTEMS ONLINE. AWAITING PILOT AUTHORIZATION."
	FallbackEmpty = "And they're burning up the track!"
	FallbackError = "The race heats up!"
)

// Gate allows one outstanding generator request at a time. An accepted event
// blocks further events for the cooldown window, measured from acceptance.
// Events arriving while blocked are dropped.
type Gate struct {
	mu       sync.Mutex
	busy     bool
	text     string
	seq      uint64 // last accepted request
	shown    uint64 // request whose reply is on display
	gen      Generator
	sched    timer.Scheduler
	cooldown time.Duration
	timeout  time.Duration
	baseCtx  context.Context
	wg       sync.WaitGroup
	logger   *log.Logger
	tracer   trace.Tracer

	accepted metric.Int64Counter
	dropped  metric.Int64Counter
	failed   metric.Int64Counter
}

type Option func(g *Gate)

func WithCooldown(d time.Duration) Option {
	return func(g *Gate) {
		g.cooldown = d
	}
}

// WithTimeout limits a single generator call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

// WithContext sets the parent context of generator calls.
func WithContext(ctx context.Context) Option {
	return func(g *Gate) {
		g.baseCtx = ctx
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

func NewGate(gen Generator, sched timer.Scheduler, opts ...Option) *Gate {
	g := &Gate{
		gen:      gen,
		sched:    sched,
		text:     InitialText,
		cooldown: DefaultCooldown,
		timeout:  DefaultTimeout,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Default().Named("commentary")
	}
	g.tracer = otel.Tracer("hdr.commentary")
	g.setupMetrics()
	return g
}

//nolint:whitespace // editor/linter issue
func (g *Gate) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("hdr.commentary")
	register := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(desc), metric.WithUnit("{count}"))
		if err != nil {
			g.logger.Error("failed to register metric",
				log.String("metric", name), log.ErrorField(err))
			return nil
		}
		return c
	}
	g.accepted = register("hdr.commentary.accepted", "Number of events sent to the generator")
	g.dropped = register("hdr.commentary.dropped", "Number of events dropped while busy")
	g.failed = register("hdr.commentary.failed", "Number of failed generator calls")
}

// Notify hands the event to the generator unless a request was accepted
// within the cooldown window. It never blocks.
func (g *Gate) Notify(ev model.RaceEvent) bool {
	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		g.count(g.dropped, ev)
		return false
	}
	g.busy = true
	g.seq++
	seq := g.seq
	g.sched.AfterFunc(g.cooldown, g.release)
	g.mu.Unlock()

	g.count(g.accepted, ev)
	g.wg.Add(1)
	go g.generate(seq, ev)
	return true
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
}

func (g *Gate) generate(seq uint64, ev model.RaceEvent) {
	defer g.wg.Done()
	ctx, cancel := context.WithTimeout(g.baseCtx, g.timeout)
	defer cancel()
	ctx, span := g.tracer.Start(ctx, "commentary.generate",
		trace.WithAttributes(
			attribute.String("event.kind", ev.Kind.String()),
			attribute.Int("rank", ev.Rank),
		))
	defer span.End()

	text, err := g.gen.Generate(ctx, ev.Description, ev.Rank, ev.Total)
	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		g.logger.Warn("commentary generator failed",
			log.String("event", ev.Description), log.ErrorField(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.count(g.failed, ev)
		text = FallbackError
	case text == "":
		text = FallbackEmpty
	}
	// the session may have been reset meanwhile, only the text is touched
	g.mu.Lock()
	if seq < g.shown {
		g.mu.Unlock()
		g.logger.Debug("stale commentary ignored",
			log.Uint64("seq", seq), log.String("text", text))
		return
	}
	g.shown = seq
	g.text = text
	g.mu.Unlock()
	g.logger.Debug("commentary updated", log.String("text", text))
}

func (g *Gate) count(c metric.Int64Counter, ev model.RaceEvent) {
	if c != nil {
		c.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", ev.Kind.String())))
	}
}

// Text returns the line currently on display.
func (g *Gate) Text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.text
}

func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Wait blocks until all started generator calls have returned.
func (g *Gate) Wait() {
	g.wg.Wait()
}
