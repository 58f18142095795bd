package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing/race"
	"github.com/mpapenbr/hyperdrive-race/pkg/timer"
)

var ErrRaceTimeout = errors.New("race did not finish in time")

// InputSource produces the player input for the next frame.
type InputSource interface {
	Input(v *model.Vehicle) model.MoveInput
}

// Runner is the frame loop. Each frame it advances the scheduler, feeds the
// player input and ticks the director.
type Runner struct {
	director   *race.Director
	sched      *timer.Virtual
	input      InputSource
	frameDelta time.Duration
	maxDelta   time.Duration
	realtime   bool
	timeout    time.Duration
	logger     *log.Logger
	frames     uint64
	simulated  time.Duration
}

type Option func(r *Runner)

func WithInputSource(src InputSource) Option {
	return func(r *Runner) {
		r.input = src
	}
}

func WithFrameDelta(d time.Duration) Option {
	return func(r *Runner) {
		r.frameDelta = d
	}
}

// WithMaxDelta caps the time advanced in one frame.
func WithMaxDelta(d time.Duration) Option {
	return func(r *Runner) {
		r.maxDelta = d
	}
}

// WithRealtime paces frames with the wall clock. Otherwise frames run back to
// back with a fixed delta.
func WithRealtime(realtime bool) Option {
	return func(r *Runner) {
		r.realtime = realtime
	}
}

// WithTimeout limits the simulated duration of Run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func New(director *race.Director, sched *timer.Virtual, opts ...Option) *Runner {
	r := &Runner{
		director:   director,
		sched:      sched,
		frameDelta: time.Second / 60,
		maxDelta:   race.DefaultMaxTickDelta,
		timeout:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default().Named("runner")
	}
	return r
}

// Run starts the countdown if needed and runs frames until the race is
// complete. It returns the final snapshot.
func (r *Runner) Run(ctx context.Context) (model.Snapshot, error) {
	if r.director.Phase() == model.PhaseIdle {
		if err := r.director.StartCountdown(); err != nil {
			return model.Snapshot{}, err
		}
	}
	var ticker *time.Ticker
	if r.realtime {
		ticker = time.NewTicker(r.frameDelta)
		defer ticker.Stop()
	}
	last := time.Now()
	for {
		dt := r.frameDelta
		if ticker != nil {
			select {
			case <-ctx.Done():
				return r.director.Snapshot(), ctx.Err()
			case now := <-ticker.C:
				dt = now.Sub(last)
				last = now
			}
		} else if err := ctx.Err(); err != nil {
			return r.director.Snapshot(), err
		}
		r.Frame(dt)
		if r.director.Phase() == model.PhaseComplete {
			snap := r.director.Snapshot()
			r.logger.Info("race complete",
				log.Uint64("frames", r.frames),
				log.Duration("simulated", r.simulated),
				log.Int("rank", snap.PlayerRank))
			return snap, nil
		}
		if r.simulated >= r.timeout {
			return r.director.Snapshot(), fmt.Errorf("%w: %v simulated", ErrRaceTimeout, r.simulated)
		}
	}
}

// Frame runs a single frame with the elapsed time dt.
func (r *Runner) Frame(dt time.Duration) {
	dt = max(min(dt, r.maxDelta), 0)
	r.frames++
	r.simulated += dt
	r.sched.Advance(dt)
	if r.input != nil && r.director.Phase() == model.PhaseActive {
		if p, ok := r.director.PlayerVehicle(); ok {
			r.director.SetInput(r.input.Input(&p))
		}
	}
	r.director.Tick(dt)
}

func (r *Runner) Frames() uint64 {
	return r.frames
}
