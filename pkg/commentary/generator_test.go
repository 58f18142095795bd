package commentary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanned_Generate(t *testing.T) {
	c := NewCanned()
	ctx := context.Background()

	first, err := c.Generate(ctx, "Lap 2! Don't let up!", 3, 4)
	assert.NoError(t, err)
	assert.Equal(t, "Another lap in the books, P3 of 4 and pushing!", first)

	second, _ := c.Generate(ctx, "Lap 3! Don't let up!", 2, 4)
	assert.Equal(t, "Clock keeps ticking, P2 of 4!", second)

	third, _ := c.Generate(ctx, "Lap 4! Don't let up!", 1, 4)
	assert.Equal(t, "Another lap in the books, P1 of 4 and pushing!", third)

	over, _ := c.Generate(ctx, "Target overtaken. Moving to the front.", 1, 4)
	assert.Equal(t, "What a move! Up to P1!", over)

	unknown, err := c.Generate(ctx, "pit stop", 1, 4)
	assert.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestCanned_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCanned().Generate(ctx, "Lap 2! Don't let up!", 1, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{"The grid is live! Floor it!", "grid"},
		{"Lap 2! Don't let up!", "lap"},
		{"Target overtaken. Moving to the front.", "overtake"},
		{"VICTORY! YOU HAVE CONQUERED THE GRID!", "finish"},
		{"Checkered flag! P3 of 4.", "finish"},
		{"something else", ""},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.event))
		})
	}
}
