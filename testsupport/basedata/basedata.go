package basedata

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing"
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

// StationaryDriver never moves a vehicle.
func StationaryDriver() processing.Driver {
	return processing.DriverFunc(func(v *model.Vehicle, _ float64) processing.Outcome {
		return processing.Outcome{Lap: v.Lap}
	})
}

// LapEveryNTicks moves a vehicle evenly around the track and completes a lap
// every n-th tick, independent of dt.
func LapEveryNTicks(n int) processing.Driver {
	counts := map[string]int{}
	return processing.DriverFunc(func(v *model.Vehicle, _ float64) processing.Outcome {
		counts[v.ID]++
		step := counts[v.ID] % n
		v.Progress = float64(step) / float64(n)
		if step == 0 {
			v.Lap++
			return processing.Outcome{LapCompleted: true, Lap: v.Lap}
		}
		return processing.Outcome{Lap: v.Lap}
	})
}

// FixedLapDriver pins vehicles to a lap.
func FixedLapDriver(lap int) processing.Driver {
	return processing.DriverFunc(func(v *model.Vehicle, _ float64) processing.Outcome {
		v.Lap = lap
		return processing.Outcome{Lap: v.Lap}
	})
}

type GenerateCall struct {
	Event string
	Rank  int
	Total int
}

// RecordingGenerator is a commentary generator that records its calls.
// If Release is set, each call blocks until a value is received from it.
type RecordingGenerator struct {
	mu      sync.Mutex
	calls   []GenerateCall
	Reply   string
	Err     error
	Release chan struct{}
	done    chan struct{}
}

func NewRecordingGenerator(reply string) *RecordingGenerator {
	return &RecordingGenerator{Reply: reply, done: make(chan struct{}, 100)}
}

//nolint:whitespace // editor/linter issue
func (g *RecordingGenerator) Generate(
	ctx context.Context, event string, rank, total int,
) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, GenerateCall{Event: event, Rank: rank, Total: total})
	g.mu.Unlock()
	defer func() { g.done <- struct{}{} }()
	if g.Release != nil {
		select {
		case <-g.Release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.Reply, g.Err
}

func (g *RecordingGenerator) Calls() []GenerateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GenerateCall(nil), g.calls...)
}

// Done signals once per finished call.
func (g *RecordingGenerator) Done() <-chan struct{} {
	return g.done
}
