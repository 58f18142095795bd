package commentary

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/timer"
	"github.com/mpapenbr/hyperdrive-race/testsupport/basedata"
)

func newTestGate(gen Generator, opts ...Option) (*Gate, *timer.Virtual) {
	sched := timer.NewVirtual(basedata.TestTime())
	opts = append([]Option{WithLogger(log.New(io.Discard, log.DebugLevel))}, opts...)
	return NewGate(gen, sched, opts...), sched
}

func overtake() model.RaceEvent {
	return model.RaceEvent{
		Kind: model.EventOvertake, Description: "Target overtaken. Moving to the front.",
		Rank: 2, Total: 4,
	}
}

func TestGate_DropsWithinCooldown(t *testing.T) {
	gen := basedata.NewRecordingGenerator("Up the order!")
	g, sched := newTestGate(gen)
	assert.Equal(t, InitialText, g.Text())

	accepted := 0
	for range 5 {
		if g.Notify(overtake()) {
			accepted++
		}
	}
	g.Wait()
	assert.Equal(t, 1, accepted)
	require.Len(t, gen.Calls(), 1)
	assert.Equal(t, basedata.GenerateCall{
		Event: "Target overtaken. Moving to the front.", Rank: 2, Total: 4,
	}, gen.Calls()[0])
	assert.Equal(t, "Up the order!", g.Text())

	sched.Advance(DefaultCooldown - time.Millisecond)
	assert.False(t, g.Notify(overtake()))
	sched.Advance(time.Millisecond)
	assert.True(t, g.Notify(overtake()))
	g.Wait()
	assert.Len(t, gen.Calls(), 2)
}

func TestGate_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{"reply", "  Pure speed!\n", nil, "Pure speed!"},
		{"empty reply", "   ", nil, FallbackEmpty},
		{"error", "ignored", errors.New("quota exceeded"), FallbackError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := basedata.NewRecordingGenerator(tt.reply)
			gen.Err = tt.err
			g, _ := newTestGate(gen)
			require.True(t, g.Notify(overtake()))
			g.Wait()
			assert.Equal(t, tt.want, g.Text())
		})
	}
}

func TestGate_SlowCallDoesNotExtendCooldown(t *testing.T) {
	gen := basedata.NewRecordingGenerator("Finally!")
	gen.Release = make(chan struct{})
	g, sched := newTestGate(gen)

	require.True(t, g.Notify(overtake()))
	sched.Advance(DefaultCooldown)
	assert.False(t, g.Busy())
	assert.Equal(t, InitialText, g.Text())

	// the second request goes out while the first one is still pending
	require.True(t, g.Notify(overtake()))
	close(gen.Release)
	g.Wait()
	assert.Len(t, gen.Calls(), 2)
	assert.Equal(t, "Finally!", g.Text())
}

func TestGate_StaleReplyKeepsNewerText(t *testing.T) {
	slow := make(chan struct{})
	gen := GeneratorFunc(func(_ context.Context, _ string, rank, _ int) (string, error) {
		if rank == 2 {
			<-slow
			return "Old news", nil
		}
		return "Fresh line", nil
	})
	g, sched := newTestGate(gen)

	require.True(t, g.Notify(overtake()))
	sched.Advance(DefaultCooldown)
	leading := overtake()
	leading.Rank = 1
	require.True(t, g.Notify(leading))
	assert.Eventually(t, func() bool { return g.Text() == "Fresh line" },
		time.Second, time.Millisecond)

	close(slow)
	g.Wait()
	assert.Equal(t, "Fresh line", g.Text())
}

func TestGate_Timeout(t *testing.T) {
	gen := basedata.NewRecordingGenerator("too late")
	gen.Release = make(chan struct{})
	g, _ := newTestGate(gen, WithTimeout(10*time.Millisecond))

	require.True(t, g.Notify(overtake()))
	g.Wait()
	assert.Equal(t, FallbackError, g.Text())
}

func TestGate_CustomCooldown(t *testing.T) {
	gen := basedata.NewRecordingGenerator("ok")
	g, sched := newTestGate(gen, WithCooldown(time.Second))
	require.True(t, g.Notify(overtake()))
	sched.Advance(time.Second)
	assert.True(t, g.Notify(overtake()))
	g.Wait()
}
