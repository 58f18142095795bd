package race

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

const hoverHeight = 0.5

var ErrInvalidGrid = errors.New("invalid grid")

// GridSlot describes the starting position of one vehicle.
type GridSlot struct {
	ID       string
	Name     string
	Color    string
	Role     model.Role
	Position r3.Vec
	Progress float64
}

// DefaultGrid is the staggered starting grid. AI cars start just behind the
// line, the player on it.
func DefaultGrid() []GridSlot {
	return []GridSlot{
		{
			ID: "player", Name: "Nova-1", Color: "#00ffff", Role: model.RolePlayer,
			Position: r3.Vec{X: 0, Y: hoverHeight, Z: 0}, Progress: 0,
		},
		{
			ID: "ai-1", Name: "Phantom", Color: "#ff00ff", Role: model.RoleAI,
			Position: r3.Vec{X: 3, Y: hoverHeight, Z: -5}, Progress: 0.98,
		},
		{
			ID: "ai-2", Name: "Viper", Color: "#ffff00", Role: model.RoleAI,
			Position: r3.Vec{X: -3, Y: hoverHeight, Z: -10}, Progress: 0.95,
		},
		{
			ID: "ai-3", Name: "Goliath", Color: "#00ff00", Role: model.RoleAI,
			Position: r3.Vec{X: 0, Y: hoverHeight, Z: -15}, Progress: 0.92,
		},
	}
}

// validateGrid checks that the grid holds exactly one player and that no
// vehicle id is used twice.
func validateGrid(grid []GridSlot) error {
	players := 0
	seen := make(map[string]struct{}, len(grid))
	for _, slot := range grid {
		if slot.Role == model.RolePlayer {
			players++
		}
		if _, ok := seen[slot.ID]; ok {
			return fmt.Errorf("%w: duplicate vehicle id %q", ErrInvalidGrid, slot.ID)
		}
		seen[slot.ID] = struct{}{}
	}
	if players != 1 {
		return fmt.Errorf("%w: need exactly one player, got %d", ErrInvalidGrid, players)
	}
	return nil
}

func buildVehicles(grid []GridSlot) []*model.Vehicle {
	ret := make([]*model.Vehicle, 0, len(grid))
	for i, slot := range grid {
		ret = append(ret, &model.Vehicle{
			ID:       slot.ID,
			Name:     slot.Name,
			Color:    slot.Color,
			Role:     slot.Role,
			GridSlot: i,
			Position: slot.Position,
			Lap:      1,
			Progress: slot.Progress,
		})
	}
	return ret
}

// Standing orders vehicles by lap desc, then progress desc. The sort is
// stable, equal vehicles keep the order of the input slice.
func Standing(vehicles []*model.Vehicle) []*model.Vehicle {
	ret := slices.Clone(vehicles)
	slices.SortStableFunc(ret, func(a, b *model.Vehicle) int {
		if a.Lap != b.Lap {
			return b.Lap - a.Lap
		}
		switch {
		case a.Progress > b.Progress:
			return -1
		case a.Progress < b.Progress:
			return 1
		default:
			return 0
		}
	})
	return ret
}

// rankOf returns the 1-based position of the vehicle with id, 0 if missing.
func rankOf(standing []*model.Vehicle, id string) int {
	idx := slices.IndexFunc(standing, func(v *model.Vehicle) bool { return v.ID == id })
	return idx + 1
}
