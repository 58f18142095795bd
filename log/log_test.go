package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestLogger_Level(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, InfoLevel)
	l.Debug("hidden")
	l.Info("shown", String("car", "Nova-1"))
	assert.Assert(t, !strings.Contains(buf.String(), "hidden"))
	assert.Assert(t, is.Contains(buf.String(), `"car":"Nova-1"`))

	buf.Reset()
	child := l.Named("race")
	l.SetLevel(DebugLevel)
	child.Debug("now visible")
	assert.Assert(t, is.Contains(buf.String(), `"logger":"race"`))
	assert.Assert(t, is.Contains(buf.String(), "now visible"))
}

func TestWithFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	opt, err := WithFilter("debug:race info:*")
	assert.NilError(t, err)
	l := New(buf, DebugLevel, opt)

	l.Named("race").Debug("race debug")
	l.Named("commentary").Debug("commentary debug")
	l.Named("commentary").Info("commentary info")

	out := buf.String()
	assert.Assert(t, is.Contains(out, "race debug"))
	assert.Assert(t, !strings.Contains(out, "commentary debug"))
	assert.Assert(t, is.Contains(out, "commentary info"))
}

func TestWithFilter_Invalid(t *testing.T) {
	_, err := WithFilter("nosuchlevel:*")
	assert.Assert(t, err != nil)
}

func TestNewFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.yml")
	content := "level: warn\nencoding: json\noutputPaths: [\"stderr\"]\n"
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o600))

	l, err := NewFromConfigFile(path)
	assert.NilError(t, err)
	assert.Equal(t, l.Level(), WarnLevel)
	assert.Assert(t, !l.Enabled(InfoLevel))
}

func TestContext(t *testing.T) {
	l := New(&bytes.Buffer{}, InfoLevel).Named("ctx")
	ctx := AddToContext(context.Background(), l)
	assert.Equal(t, GetFromContext(ctx), l)
	assert.Equal(t, GetFromContext(context.Background()), Default())
}
