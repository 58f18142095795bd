package config

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NilError(t, cfg.Validate())
	assert.Equal(t, cfg.FrameDelta(), time.Second/60)

	cfg.MaxLaps = 0
	assert.Assert(t, errors.Is(cfg.Validate(), ErrInvalidMaxLaps))

	cfg = DefaultConfig()
	cfg.TickRate = 0
	assert.Assert(t, errors.Is(cfg.Validate(), ErrInvalidTickRate))
}

func TestServiceWait(t *testing.T) {
	WaitForServices = "3s"
	assert.Equal(t, ServiceWait(time.Second), 3*time.Second)
	WaitForServices = "soon"
	assert.Equal(t, ServiceWait(time.Second), time.Second)
}

func TestSetupTelemetry_Stdout(t *testing.T) {
	buf := &bytes.Buffer{}
	tel, err := SetupTelemetry(context.Background(),
		WithEndpoint(StdoutEndpoint), WithWriter(buf), WithExportInterval(time.Hour))
	assert.NilError(t, err)

	counter, err := otel.Meter("test").Int64Counter("hdr.test.counter")
	assert.NilError(t, err)
	counter.Add(context.Background(), 3)
	_, span := otel.Tracer("test").Start(context.Background(), "test-span")
	span.End()

	assert.NilError(t, tel.Shutdown())
	assert.Assert(t, is.Contains(buf.String(), "hdr.test.counter"))
	assert.Assert(t, is.Contains(buf.String(), "test-span"))
}
