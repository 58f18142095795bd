package model

type EventKind int

const (
	EventRaceStart EventKind = iota + 1
	EventLapComplete
	EventOvertake
	EventRaceFinished
)

func (k EventKind) String() string {
	switch k {
	case EventRaceStart:
		return "race-start"
	case EventLapComplete:
		return "lap-complete"
	case EventOvertake:
		return "overtake"
	case EventRaceFinished:
		return "race-finished"
	default:
		return "unknown"
	}
}
