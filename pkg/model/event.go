package model

import "time"

// RaceEvent is raised by the race director.
// Description is the text handed to the commentary generator.
type RaceEvent struct {
	Kind        EventKind `json:"kind"`
	SessionKey  string    `json:"sessionKey"`
	Lap         int       `json:"lap"`
	Rank        int       `json:"rank"`
	Total       int       `json:"total"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}
