package race

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/commentary"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing/ai"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing/player"
	"github.com/mpapenbr/hyperdrive-race/pkg/timer"
	"github.com/mpapenbr/hyperdrive-race/pkg/track"
)

const (
	DefaultMaxLaps      = 3
	DefaultMaxTickDelta = 50 * time.Millisecond
	CountdownStart      = 3
	CountdownInterval   = time.Second

	InitialCommentary = commentary.InitialText
	TextRaceStart     = "The grid is live! Floor it!"
	TextOvertake      = "Target overtaken. Moving to the front."
	TextVictory       = "VICTORY! YOU HAVE CONQUERED THE GRID!"
)

var (
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrInvalidMaxLaps    = errors.New("max laps must be at least 1")
)

// Commentator receives race events. Notify returns false if the event was
// dropped. Text is the line currently on display.
type Commentator interface {
	Notify(ev model.RaceEvent) bool
	Text() string
}

type EventHandler func(ev model.RaceEvent)

// Director owns the race session and all vehicle records. Tick, the timer
// callbacks and the control methods must be called from the goroutine that
// advances the scheduler. Snapshot may be called from anywhere.
type Director struct {
	mu           sync.Mutex
	curve        *track.Curve
	sched        timer.Scheduler
	grid         []GridSlot
	maxLaps      int
	maxTickDelta time.Duration
	drivers      processing.Drivers
	controller   *player.Controller
	commentator  Commentator
	handlers     []EventHandler
	eventSink    chan<- model.RaceEvent
	snapshotSink chan<- model.Snapshot
	seed         *uint64
	logger       *log.Logger
	metrics      *metrics

	sessionKey  string
	phase       model.Phase
	countdown   int
	cdTimer     timer.Timer
	generation  uint64
	startTime   time.Time
	endTime     time.Time
	frame       uint64
	vehicles    []*model.Vehicle
	leaderboard []*model.Vehicle
	playerRank  int
	laps        *lapRecorder
	pending     []model.RaceEvent
}

type Option func(d *Director)

func WithCurve(c *track.Curve) Option {
	return func(d *Director) {
		d.curve = c
	}
}

func WithScheduler(s timer.Scheduler) Option {
	return func(d *Director) {
		d.sched = s
	}
}

func WithMaxLaps(n int) Option {
	return func(d *Director) {
		d.maxLaps = n
	}
}

// WithMaxTickDelta limits the simulated time of a single tick.
func WithMaxTickDelta(dt time.Duration) Option {
	return func(d *Director) {
		d.maxTickDelta = dt
	}
}

func WithGrid(grid []GridSlot) Option {
	return func(d *Director) {
		d.grid = grid
	}
}

// WithSeed makes the default AI driver reproducible.
func WithSeed(seed uint64) Option {
	return func(d *Director) {
		d.seed = &seed
	}
}

// WithDriver replaces the driver for all vehicles of a role.
func WithDriver(role model.Role, drv processing.Driver) Option {
	return func(d *Director) {
		d.drivers[role] = drv
	}
}

func WithPlayerController(c *player.Controller) Option {
	return func(d *Director) {
		d.controller = c
	}
}

func WithCommentator(c Commentator) Option {
	return func(d *Director) {
		d.commentator = c
	}
}

func WithEventHandler(h EventHandler) Option {
	return func(d *Director) {
		d.handlers = append(d.handlers, h)
	}
}

// WithEventSink sends every event to ch. Sends never block, events are
// dropped if ch is full.
func WithEventSink(ch chan<- model.RaceEvent) Option {
	return func(d *Director) {
		d.eventSink = ch
	}
}

// WithSnapshotSink sends a snapshot to ch after every tick without blocking.
func WithSnapshotSink(ch chan<- model.Snapshot) Option {
	return func(d *Director) {
		d.snapshotSink = ch
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Director) {
		d.logger = l
	}
}

func NewDirector(opts ...Option) (*Director, error) {
	d := &Director{
		maxLaps:      DefaultMaxLaps,
		maxTickDelta: DefaultMaxTickDelta,
		grid:         DefaultGrid(),
		drivers:      processing.Drivers{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxLaps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxLaps, d.maxLaps)
	}
	if err := validateGrid(d.grid); err != nil {
		return nil, err
	}
	if d.logger == nil {
		d.logger = log.Default().Named("race")
	}
	if d.curve == nil {
		d.curve = track.Default()
	}
	if d.sched == nil {
		d.sched = timer.NewVirtual(time.Now())
	}
	if d.controller == nil {
		d.controller = player.NewController(d.curve)
	}
	if err := d.controller.ValidateSearchWindow(d.maxTickDelta.Seconds()); err != nil {
		return nil, err
	}
	if _, ok := d.drivers[model.RolePlayer]; !ok {
		d.drivers[model.RolePlayer] = d.controller
	}
	if _, ok := d.drivers[model.RoleAI]; !ok {
		aiOpts := []ai.Option{}
		if d.seed != nil {
			aiOpts = append(aiOpts, ai.WithSeed(*d.seed))
		}
		d.drivers[model.RoleAI] = ai.NewDriver(d.curve, aiOpts...)
	}
	for _, slot := range d.grid {
		if _, err := d.drivers.Resolve(slot.Role); err != nil {
			return nil, err
		}
	}
	d.metrics = newMetrics(d.logger)
	d.resetLocked()
	return d, nil
}

// StartCountdown moves the session from Idle to Countdown. The countdown
// decrements every second and activates the race when it reaches zero.
func (d *Director) StartCountdown() error {
	d.mu.Lock()
	if d.phase != model.PhaseIdle {
		phase := d.phase
		d.mu.Unlock()
		return fmt.Errorf("%w: start countdown in phase %s", ErrInvalidTransition, phase)
	}
	d.phase = model.PhaseCountdown
	d.countdown = CountdownStart
	d.scheduleCountdown(d.generation)
	d.logger.Info("countdown started",
		log.String("session", d.sessionKey), log.Int("countdown", d.countdown))
	d.mu.Unlock()
	return nil
}

func (d *Director) scheduleCountdown(gen uint64) {
	d.cdTimer = d.sched.AfterFunc(CountdownInterval, func() {
		d.countdownStep(gen)
	})
}

func (d *Director) countdownStep(gen uint64) {
	d.mu.Lock()
	// the session was reset while the timer was pending
	if gen != d.generation || d.phase != model.PhaseCountdown {
		d.mu.Unlock()
		return
	}
	d.countdown--
	d.logger.Debug("countdown", log.Int("value", d.countdown))
	if d.countdown > 0 {
		d.scheduleCountdown(gen)
	} else {
		d.activate()
	}
	events := d.takePending()
	d.mu.Unlock()
	d.dispatch(events)
}

func (d *Director) activate() {
	d.cdTimer = nil
	d.phase = model.PhaseActive
	d.startTime = d.sched.Now()
	d.laps.start(d.vehicles, d.startTime)
	d.logger.Info("race started",
		log.String("session", d.sessionKey), log.Time("start", d.startTime))
	d.raise(model.EventRaceStart, TextRaceStart)
}

// Reset discards the session and builds a new one in phase Idle with a new
// session key. Pending countdown timers are stopped. Safe in any phase.
func (d *Director) Reset() {
	d.mu.Lock()
	d.resetLocked()
	snap := d.snapshotLocked()
	d.mu.Unlock()
	d.publishSnapshot(snap)
}

func (d *Director) resetLocked() {
	if d.cdTimer != nil {
		d.cdTimer.Stop()
		d.cdTimer = nil
	}
	d.generation++
	d.sessionKey = uuid.New().String()
	d.phase = model.PhaseIdle
	d.countdown = 0
	d.startTime = time.Time{}
	d.endTime = time.Time{}
	d.frame = 0
	d.vehicles = buildVehicles(d.grid)
	d.leaderboard = Standing(d.vehicles)
	d.playerRank = d.playerRankIn(d.leaderboard)
	d.laps = newLapRecorder()
	d.pending = nil
	d.controller.Reset()
	d.logger.Info("session reset", log.String("session", d.sessionKey))
}

// SetInput passes the directional flags to the player controller.
func (d *Director) SetInput(in model.MoveInput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.controller.SetInput(in)
}

// Tick advances the simulation by dt. Vehicles are only moved while the
// race is active. dt is capped at the configured maximum tick delta.
func (d *Director) Tick(dt time.Duration) {
	began := time.Now()
	d.mu.Lock()
	d.frame++
	if d.phase == model.PhaseActive && dt > 0 {
		dt = min(dt, d.maxTickDelta)
		d.step(dt.Seconds())
	}
	events := d.takePending()
	snap := d.snapshotLocked()
	phase := d.phase
	d.mu.Unlock()

	d.dispatch(events)
	d.publishSnapshot(snap)
	d.metrics.recordTick(phase, time.Since(began))
}

func (d *Director) step(dt float64) {
	now := d.sched.Now()
	var playerOutcome processing.Outcome
	var playerLapDone bool
	for _, v := range d.vehicles {
		// resolved in NewDirector
		drv, _ := d.drivers.Resolve(v.Role)
		out := drv.Drive(v, dt)
		if out.LapCompleted {
			d.laps.complete(v, now)
		}
		if v.IsPlayer() {
			playerOutcome = out
			playerLapDone = out.LapCompleted
		}
	}

	d.leaderboard = Standing(d.vehicles)
	rank := d.playerRankIn(d.leaderboard)
	prevRank := d.playerRank
	d.playerRank = rank

	if playerLapDone {
		if playerOutcome.Lap > d.maxLaps {
			d.finish(now)
			return
		}
		d.logger.Info("lap completed", log.Int("lap", playerOutcome.Lap), log.Int("rank", rank))
		d.raise(model.EventLapComplete, fmt.Sprintf("Lap %d! Don't let up!", playerOutcome.Lap))
	}
	if rank > 0 && rank < prevRank {
		d.logger.Debug("overtake", log.Int("from", prevRank), log.Int("to", rank))
		d.raise(model.EventOvertake, TextOvertake)
	}
}

func (d *Director) finish(now time.Time) {
	d.phase = model.PhaseComplete
	d.endTime = now
	text := fmt.Sprintf("Checkered flag! P%d of %d.", d.playerRank, len(d.vehicles))
	if d.playerRank == 1 {
		text = TextVictory
	}
	d.logger.Info("race finished",
		log.String("session", d.sessionKey),
		log.Int("rank", d.playerRank),
		log.Duration("elapsed", d.endTime.Sub(d.startTime)))
	d.raise(model.EventRaceFinished, text)
}

func (d *Director) playerRankIn(standing []*model.Vehicle) int {
	p, ok := lo.Find(standing, func(v *model.Vehicle) bool { return v.IsPlayer() })
	if !ok {
		return 0
	}
	return rankOf(standing, p.ID)
}

func (d *Director) currentLap() int {
	p, ok := lo.Find(d.vehicles, func(v *model.Vehicle) bool { return v.IsPlayer() })
	if !ok {
		return 0
	}
	return min(p.Lap, d.maxLaps)
}

func (d *Director) raise(kind model.EventKind, description string) {
	d.pending = append(d.pending, model.RaceEvent{
		Kind:        kind,
		SessionKey:  d.sessionKey,
		Lap:         d.currentLap(),
		Rank:        d.playerRank,
		Total:       len(d.vehicles),
		Description: description,
		Timestamp:   d.sched.Now(),
	})
}

func (d *Director) takePending() []model.RaceEvent {
	ret := d.pending
	d.pending = nil
	return ret
}

// dispatch runs outside the lock, handlers may call Snapshot.
func (d *Director) dispatch(events []model.RaceEvent) {
	for _, ev := range events {
		d.metrics.recordEvent(ev.Kind)
		d.logger.Info("race event",
			log.String("kind", ev.Kind.String()),
			log.String("description", ev.Description),
			log.Int("rank", ev.Rank))
		if d.commentator != nil {
			if !d.commentator.Notify(ev) {
				d.logger.Debug("commentary busy, event dropped", log.String("kind", ev.Kind.String()))
			}
		}
		for _, h := range d.handlers {
			h(ev)
		}
		if d.eventSink != nil {
			select {
			case d.eventSink <- ev:
			default:
				d.logger.Warn("event sink full", log.String("kind", ev.Kind.String()))
			}
		}
	}
}

func (d *Director) publishSnapshot(s model.Snapshot) {
	if d.snapshotSink == nil {
		return
	}
	select {
	case d.snapshotSink <- s:
	default:
	}
}

// Snapshot returns a copy of the session that shares no memory with the
// director.
func (d *Director) Snapshot() model.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Director) snapshotLocked() model.Snapshot {
	commentary := InitialCommentary
	if d.commentator != nil {
		commentary = d.commentator.Text()
	}
	elapsed := time.Duration(0)
	switch d.phase {
	case model.PhaseActive:
		elapsed = d.sched.Now().Sub(d.startTime)
	case model.PhaseComplete:
		elapsed = d.endTime.Sub(d.startTime)
	case model.PhaseIdle, model.PhaseCountdown:
	}
	deref := func(v *model.Vehicle, _ int) model.Vehicle { return *v }
	return model.Snapshot{
		SessionKey:  d.sessionKey,
		Frame:       d.frame,
		Phase:       d.phase,
		CurrentLap:  d.currentLap(),
		MaxLaps:     d.maxLaps,
		Countdown:   d.countdown,
		StartTime:   d.startTime,
		ElapsedTime: elapsed,
		Commentary:  commentary,
		PlayerRank:  d.playerRank,
		Vehicles:    lo.Map(d.vehicles, deref),
		Leaderboard: lo.Map(d.leaderboard, deref),
		Laps:        d.laps.ordered(d.leaderboard),
		Camera:      d.controller.Camera().State(),
	}
}

func (d *Director) Phase() model.Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Director) SessionKey() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionKey
}

// PlayerVehicle returns a copy of the player vehicle.
func (d *Director) PlayerVehicle() (model.Vehicle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := lo.Find(d.vehicles, func(v *model.Vehicle) bool { return v.IsPlayer() })
	if !ok {
		return model.Vehicle{}, false
	}
	return *p, true
}

func (d *Director) Controller() *player.Controller {
	return d.controller
}

type metrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	events       metric.Int64Counter
}

func newMetrics(l *log.Logger) *metrics {
	meter := otel.GetMeterProvider().Meter("hdr.race")
	m := &metrics{}
	var err error
	if m.ticks, err = meter.Int64Counter("hdr.race.ticks",
		metric.WithDescription("Number of simulation ticks"),
		metric.WithUnit("{count}")); err != nil {
		l.Error("failed to register metric", log.String("metric", "hdr.race.ticks"), log.ErrorField(err))
	}
	if m.tickDuration, err = meter.Float64Histogram("hdr.race.tick.duration",
		metric.WithDescription("Wall clock time spent in a tick"),
		metric.WithUnit("ms")); err != nil {
		l.Error("failed to register metric",
			log.String("metric", "hdr.race.tick.duration"), log.ErrorField(err))
	}
	if m.events, err = meter.Int64Counter("hdr.race.events",
		metric.WithDescription("Number of raised race events"),
		metric.WithUnit("{count}")); err != nil {
		l.Error("failed to register metric", log.String("metric", "hdr.race.events"), log.ErrorField(err))
	}
	return m
}

func (m *metrics) recordTick(phase model.Phase, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("phase", phase.String()))
	if m.ticks != nil {
		m.ticks.Add(context.Background(), 1, attrs)
	}
	if m.tickDuration != nil {
		m.tickDuration.Record(context.Background(), float64(took.Microseconds())/1000, attrs)
	}
}

func (m *metrics) recordEvent(kind model.EventKind) {
	if m.events != nil {
		m.events.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", kind.String())))
	}
}
