package race

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/hyperdrive-race/pkg/config"
	"github.com/mpapenbr/hyperdrive-race/pkg/runner"
)

func TestRunRace_PrintsReportOnTimeout(t *testing.T) {
	appConfig = config.DefaultConfig()
	appConfig.Seed = 1
	appConfig.RaceTimeout = 5 * time.Second

	out := &bytes.Buffer{}
	err := runRace(context.Background(), out)
	assert.Assert(t, errors.Is(err, runner.ErrRaceTimeout))
	assert.Assert(t, is.Contains(out.String(), "[race-start] The grid is live! Floor it!"))
	assert.Assert(t, is.Contains(out.String(), "Nova-1 *"))
	assert.Assert(t, is.Contains(out.String(), "active  lap 1/3"))
}

func TestNewRaceCmd_Flags(t *testing.T) {
	appConfig = config.DefaultConfig()
	cmd := NewRaceCmd()
	assert.NilError(t, cmd.ParseFlags([]string{"--laps", "5", "--seed", "7", "--realtime"}))
	assert.Equal(t, appConfig.MaxLaps, 5)
	assert.Equal(t, appConfig.Seed, uint64(7))
	assert.Assert(t, appConfig.Realtime)
	assert.NilError(t, cmd.PreRunE(cmd, nil))

	assert.NilError(t, cmd.ParseFlags([]string{"--laps", "0"}))
	assert.Assert(t, errors.Is(cmd.PreRunE(cmd, nil), config.ErrInvalidMaxLaps))
}
