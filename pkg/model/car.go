package model

import (
	"gonum.org/v1/gonum/spatial/r3"
)

type Role int

const (
	RolePlayer Role = iota
	RoleAI
)

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleAI:
		return "ai"
	default:
		return "unknown"
	}
}

// Orientation in radians. Yaw is the heading on the horizontal plane,
// pitch and roll are visual only (banking).
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Vehicle is the per-car record owned by the race director.
// ID, Name, Color, Role and GridSlot never change after creation.
type Vehicle struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Color    string      `json:"color"`
	Role     Role        `json:"role"`
	GridSlot int         `json:"gridSlot"`
	Position r3.Vec      `json:"position"`
	Rotation Orientation `json:"rotation"`
	// player: world units per second (signed)
	// ai: curve progress per second (non-negative)
	Speed float64 `json:"speed"`
	// starts at 1
	Lap int `json:"lap"`
	// in [0,1), 0 is the start/finish line
	Progress float64 `json:"progress"`
}

func (v *Vehicle) IsPlayer() bool {
	return v.Role == RolePlayer
}
