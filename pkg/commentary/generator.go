package commentary

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Generator turns a race event into a short commentary line.
// Implementations may be slow and may fail.
type Generator interface {
	Generate(ctx context.Context, event string, rank, total int) (string, error)
}

type GeneratorFunc func(ctx context.Context, event string, rank, total int) (string, error)

//nolint:whitespace // editor/linter issue
func (f GeneratorFunc) Generate(
	ctx context.Context, event string, rank, total int,
) (string, error) {
	return f(ctx, event, rank, total)
}

// Canned is an offline Generator with a fixed set of lines per event type.
// Lines are used round robin.
type Canned struct {
	mu   sync.Mutex
	next map[string]int
}

var cannedLines = map[string][]string{
	"grid": {
		"Lights out and away they go!",
		"Four machines, one line, no mercy!",
	},
	"lap": {
		"Another lap in the books, P%d of %d and pushing!",
		"Clock keeps ticking, P%d of %d!",
	},
	"overtake": {
		"What a move! Up to P%d!",
		"Clean pass, now P%d of %d!",
	},
	"finish": {
		"Across the line in P%d of %d!",
	},
}

func NewCanned() *Canned {
	return &Canned{next: map[string]int{}}
}

func (c *Canned) Generate(ctx context.Context, event string, rank, total int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := classify(event)
	lines, ok := cannedLines[key]
	if !ok {
		return "", nil
	}
	c.mu.Lock()
	idx := c.next[key] % len(lines)
	c.next[key]++
	c.mu.Unlock()

	line := lines[idx]
	switch strings.Count(line, "%d") {
	case 2:
		return fmt.Sprintf(line, rank, total), nil
	case 1:
		return fmt.Sprintf(line, rank), nil
	default:
		return line, nil
	}
}

func classify(event string) string {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "grid is live"):
		return "grid"
	case strings.HasPrefix(e, "lap "):
		return "lap"
	case strings.Contains(e, "overtaken"):
		return "overtake"
	case strings.Contains(e, "checkered") || strings.Contains(e, "victory"):
		return "finish"
	default:
		return ""
	}
}
