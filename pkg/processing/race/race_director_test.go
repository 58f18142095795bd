//nolint:funlen // ok for tests
package race

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing/player"
	"github.com/mpapenbr/hyperdrive-race/pkg/timer"
	"github.com/mpapenbr/hyperdrive-race/testsupport/basedata"
)

type fixture struct {
	d      *Director
	sched  *timer.Virtual
	events []model.RaceEvent
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{sched: timer.NewVirtual(basedata.TestTime())}
	base := []Option{
		WithScheduler(f.sched),
		WithLogger(log.New(io.Discard, log.DebugLevel)),
		WithEventHandler(func(ev model.RaceEvent) { f.events = append(f.events, ev) }),
	}
	d, err := NewDirector(append(base, opts...)...)
	require.NoError(t, err)
	f.d = d
	return f
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.d.StartCountdown())
	f.sched.Advance(CountdownStart * CountdownInterval)
	require.Equal(t, model.PhaseActive, f.d.Phase())
}

func (f *fixture) run(ticks int, dt time.Duration) {
	for range ticks {
		f.sched.Advance(dt)
		f.d.Tick(dt)
	}
}

func (f *fixture) kinds() []model.EventKind {
	return lo.Map(f.events, func(ev model.RaceEvent, _ int) model.EventKind { return ev.Kind })
}

func TestNewDirector_Validation(t *testing.T) {
	_, err := NewDirector(WithMaxLaps(0))
	assert.True(t, errors.Is(err, ErrInvalidMaxLaps))

	_, err = NewDirector(WithMaxTickDelta(200 * time.Millisecond))
	assert.True(t, errors.Is(err, player.ErrSearchWindow))

	_, err = NewDirector(WithDriver(model.RoleAI, nil))
	assert.True(t, errors.Is(err, processing.ErrNoDriver))
}

func TestNewDirector_GridValidation(t *testing.T) {
	withRole := func(slot GridSlot, role model.Role) GridSlot {
		slot.Role = role
		return slot
	}
	withID := func(slot GridSlot, id string) GridSlot {
		slot.ID = id
		return slot
	}
	def := DefaultGrid()
	tests := []struct {
		name    string
		grid    []GridSlot
		wantErr bool
	}{
		{name: "default grid", grid: DefaultGrid()},
		{
			name:    "no player",
			grid:    []GridSlot{def[1], def[2], def[3]},
			wantErr: true,
		},
		{
			name:    "two players",
			grid:    []GridSlot{def[0], withRole(def[1], model.RolePlayer), def[2]},
			wantErr: true,
		},
		{
			name:    "duplicate id",
			grid:    []GridSlot{def[0], def[1], withID(def[2], def[1].ID)},
			wantErr: true,
		},
		{name: "empty grid", grid: []GridSlot{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDirector(
				WithGrid(tt.grid),
				WithLogger(log.New(io.Discard, log.DebugLevel)),
			)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidGrid), "got %v", err)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, d.Snapshot().CurrentLap)
		})
	}
}

func TestDirector_InitialSession(t *testing.T) {
	f := newFixture(t)
	snap := f.d.Snapshot()
	assert.Equal(t, model.PhaseIdle, snap.Phase)
	assert.Equal(t, InitialCommentary, snap.Commentary)
	assert.Equal(t, DefaultMaxLaps, snap.MaxLaps)
	assert.Equal(t, 1, snap.CurrentLap)
	assert.Len(t, snap.Vehicles, 4)
	// AI cars start ahead on the staggered grid
	assert.Equal(t, 4, snap.PlayerRank)
	p, ok := snap.Player()
	require.True(t, ok)
	assert.Equal(t, "Nova-1", p.Name)
	assert.NotEmpty(t, snap.SessionKey)
}

func TestDirector_Countdown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.StartCountdown())
	assert.Equal(t, 3, f.d.Snapshot().Countdown)

	f.sched.Advance(time.Second)
	assert.Equal(t, 2, f.d.Snapshot().Countdown)
	assert.Equal(t, model.PhaseCountdown, f.d.Phase())

	err := f.d.StartCountdown()
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	f.sched.Advance(2 * time.Second)
	snap := f.d.Snapshot()
	assert.Equal(t, model.PhaseActive, snap.Phase)
	assert.Equal(t, 0, snap.Countdown)
	assert.Equal(t, basedata.TestTime().Add(3*time.Second), snap.StartTime)
	if diff := cmp.Diff([]model.EventKind{model.EventRaceStart}, f.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, TextRaceStart, f.events[0].Description)
	assert.Equal(t, snap.SessionKey, f.events[0].SessionKey)

	f.sched.Advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, f.d.Snapshot().ElapsedTime)
}

func TestDirector_NoMovementBeforeStart(t *testing.T) {
	f := newFixture(t, WithDriver(model.RolePlayer, basedata.LapEveryNTicks(1)))
	before := f.d.Snapshot()
	f.run(10, 16*time.Millisecond)
	after := f.d.Snapshot()
	if diff := cmp.Diff(before.Vehicles, after.Vehicles); diff != "" {
		t.Errorf("vehicles moved while idle (-before +after):\n%s", diff)
	}
	assert.Equal(t, uint64(10), after.Frame)
}

func TestDirector_FinishAfterMaxLaps(t *testing.T) {
	f := newFixture(t,
		WithMaxLaps(3),
		WithDriver(model.RolePlayer, basedata.LapEveryNTicks(1)),
		WithDriver(model.RoleAI, basedata.StationaryDriver()),
	)
	f.activate(t)

	f.run(1, 16*time.Millisecond)
	f.run(1, 16*time.Millisecond)
	assert.Equal(t, model.PhaseActive, f.d.Phase())
	f.run(1, 16*time.Millisecond)
	assert.Equal(t, model.PhaseComplete, f.d.Phase())

	want := []model.EventKind{
		model.EventRaceStart,
		model.EventLapComplete, model.EventOvertake,
		model.EventLapComplete,
		model.EventRaceFinished,
	}
	if diff := cmp.Diff(want, f.kinds()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Lap 2! Don't let up!", f.events[1].Description)
	assert.Equal(t, "Lap 3! Don't let up!", f.events[3].Description)
	assert.Equal(t, TextVictory, f.events[4].Description)
	assert.Equal(t, 3, f.events[4].Lap)

	// complete is terminal, vehicles stay put
	before := f.d.Snapshot()
	f.run(5, 16*time.Millisecond)
	after := f.d.Snapshot()
	assert.Equal(t, model.PhaseComplete, after.Phase)
	assert.Equal(t, before.Vehicles, after.Vehicles)
	assert.Equal(t, before.ElapsedTime, after.ElapsedTime)
	assert.Len(t, f.events, 5)
}

func TestDirector_FinishBehind(t *testing.T) {
	f := newFixture(t,
		WithMaxLaps(1),
		WithDriver(model.RolePlayer, basedata.LapEveryNTicks(1)),
		WithDriver(model.RoleAI, basedata.FixedLapDriver(5)),
	)
	f.activate(t)
	f.run(1, 16*time.Millisecond)

	assert.Equal(t, model.PhaseComplete, f.d.Phase())
	last := f.events[len(f.events)-1]
	assert.Equal(t, model.EventRaceFinished, last.Kind)
	assert.Equal(t, "Checkered flag! P4 of 4.", last.Description)
	assert.Equal(t, 4, last.Rank)
	assert.Equal(t, 4, last.Total)
}

func TestDirector_ResetFromComplete(t *testing.T) {
	f := newFixture(t,
		WithMaxLaps(1),
		WithDriver(model.RolePlayer, basedata.LapEveryNTicks(1)),
		WithDriver(model.RoleAI, basedata.StationaryDriver()),
	)
	pristine := f.d.Snapshot()
	f.activate(t)
	f.run(1, 16*time.Millisecond)
	require.Equal(t, model.PhaseComplete, f.d.Phase())
	completedKey := f.d.SessionKey()

	f.d.Reset()
	first := f.d.Snapshot()
	assert.Equal(t, model.PhaseIdle, first.Phase)
	assert.NotEqual(t, completedKey, first.SessionKey)
	for _, v := range first.Vehicles {
		assert.Equal(t, 1, v.Lap, v.Name)
	}
	ignoreKey := cmpopts.IgnoreFields(model.Snapshot{}, "SessionKey")
	if diff := cmp.Diff(pristine, first, ignoreKey); diff != "" {
		t.Errorf("reset session differs from a new one (-want +got):\n%s", diff)
	}

	f.d.Reset()
	if diff := cmp.Diff(first, f.d.Snapshot(), ignoreKey); diff != "" {
		t.Errorf("reset not idempotent (-want +got):\n%s", diff)
	}
	assert.NoError(t, f.d.StartCountdown())
}

func TestDirector_ResetDuringCountdown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.StartCountdown())
	f.sched.Advance(time.Second)
	f.d.Reset()
	assert.Equal(t, 0, f.sched.Pending())

	f.sched.Advance(5 * time.Second)
	assert.Equal(t, model.PhaseIdle, f.d.Phase())
	assert.Empty(t, f.events)
}

func TestDirector_TickDeltaClamped(t *testing.T) {
	var got []float64
	rec := processing.DriverFunc(func(v *model.Vehicle, dt float64) processing.Outcome {
		got = append(got, dt)
		return processing.Outcome{Lap: v.Lap}
	})
	f := newFixture(t, WithDriver(model.RolePlayer, rec))
	f.activate(t)
	f.d.Tick(time.Second)
	f.d.Tick(20 * time.Millisecond)
	f.d.Tick(0)
	assert.Equal(t, []float64{0.05, 0.02}, got)
}

func TestDirector_LapTimes(t *testing.T) {
	f := newFixture(t,
		WithMaxLaps(10),
		WithDriver(model.RolePlayer, basedata.LapEveryNTicks(10)),
		WithDriver(model.RoleAI, basedata.StationaryDriver()),
	)
	f.activate(t)
	f.run(25, 50*time.Millisecond)

	snap := f.d.Snapshot()
	require.Len(t, snap.Laps, 4)
	assert.Equal(t, "player", snap.Laps[0].VehicleID)
	want := []model.LapInfo{
		{LapNo: 1, LapTime: 500 * time.Millisecond},
		{LapNo: 2, LapTime: 500 * time.Millisecond},
	}
	if diff := cmp.Diff(want, snap.Laps[0].Laps); diff != "" {
		t.Errorf("lap times mismatch (-want +got):\n%s", diff)
	}
	for _, l := range snap.Laps[1:] {
		assert.Empty(t, l.Laps)
	}
}

func TestDirector_AIFirstCrossingNotTimed(t *testing.T) {
	f := newFixture(t,
		WithMaxLaps(10),
		WithDriver(model.RolePlayer, basedata.StationaryDriver()),
		WithDriver(model.RoleAI, basedata.LapEveryNTicks(4)),
	)
	f.activate(t)
	f.run(8, 50*time.Millisecond)

	snap := f.d.Snapshot()
	for _, l := range snap.Laps {
		if l.VehicleID == "player" {
			assert.Empty(t, l.Laps)
			continue
		}
		want := []model.LapInfo{{LapNo: 2, LapTime: 200 * time.Millisecond}}
		assert.Equal(t, want, l.Laps, l.VehicleID)
	}
}

func TestDirector_SeededRunsAreReproducible(t *testing.T) {
	run := func() model.Snapshot {
		f := newFixture(t, WithSeed(42))
		f.activate(t)
		f.d.SetInput(model.MoveInput{Forward: true})
		f.run(200, time.Second/60)
		return f.d.Snapshot()
	}
	a, b := run(), run()
	if diff := cmp.Diff(a.Vehicles, b.Vehicles); diff != "" {
		t.Errorf("seeded runs differ (-a +b):\n%s", diff)
	}
	assert.Equal(t, a.Leaderboard, b.Leaderboard)
	p, _ := a.Player()
	assert.Greater(t, p.Speed, 0.0)
}

func TestDirector_SnapshotIsolated(t *testing.T) {
	f := newFixture(t)
	snap := f.d.Snapshot()
	snap.Vehicles[0].Lap = 99
	snap.Leaderboard[0].Progress = 0.5
	fresh := f.d.Snapshot()
	assert.Equal(t, 1, fresh.Vehicles[0].Lap)
	assert.NotEqual(t, 0.5, fresh.Leaderboard[0].Progress)
}

type fakeCommentator struct {
	events []model.RaceEvent
	accept bool
}

func (c *fakeCommentator) Notify(ev model.RaceEvent) bool {
	c.events = append(c.events, ev)
	return c.accept
}

func (c *fakeCommentator) Text() string { return "from the booth" }

func TestDirector_Sinks(t *testing.T) {
	c := &fakeCommentator{accept: true}
	events := make(chan model.RaceEvent, 1)
	snaps := make(chan model.Snapshot, 1)
	f := newFixture(t,
		WithCommentator(c),
		WithEventSink(events),
		WithSnapshotSink(snaps),
	)
	f.activate(t)
	f.d.Tick(time.Second / 60)
	// full sinks must not block the tick
	f.d.Tick(time.Second / 60)

	ev := <-events
	assert.Equal(t, model.EventRaceStart, ev.Kind)
	snap := <-snaps
	assert.Equal(t, uint64(1), snap.Frame)
	assert.Equal(t, "from the booth", snap.Commentary)
	require.Len(t, c.events, 1)
	assert.Equal(t, 4, c.events[0].Total)
}

func TestStanding(t *testing.T) {
	type args struct {
		vehicles []*model.Vehicle
	}
	tests := []struct {
		name string
		args args
		want []string
	}{
		{
			name: "lap before progress",
			args: args{vehicles: []*model.Vehicle{
				{ID: "a", Lap: 1, Progress: 0.9},
				{ID: "b", Lap: 2, Progress: 0.1},
				{ID: "c", Lap: 1, Progress: 0.95},
			}},
			want: []string{"b", "c", "a"},
		},
		{
			name: "ties keep input order",
			args: args{vehicles: []*model.Vehicle{
				{ID: "a", Lap: 1, Progress: 0.5},
				{ID: "b", Lap: 1, Progress: 0.5},
				{ID: "c", Lap: 1, Progress: 0.7},
				{ID: "d", Lap: 1, Progress: 0.5},
			}},
			want: []string{"c", "a", "b", "d"},
		},
		{
			name: "empty",
			args: args{vehicles: []*model.Vehicle{}},
			want: []string{},
		},
	}
	ids := func(vs []*model.Vehicle) []string {
		return lo.Map(vs, func(v *model.Vehicle, _ int) string { return v.ID })
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Standing(tt.args.vehicles)
			if diff := cmp.Diff(tt.want, ids(first)); diff != "" {
				t.Errorf("Standing() mismatch (-want +got):\n%s", diff)
			}
			// sorting a sorted standing keeps it
			assert.Equal(t, ids(first), ids(Standing(first)))
		})
	}
}
