package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

// Row is one line of the results table.
type Row struct {
	Pos    int
	Name   string
	Player bool
	Lap    int
	Laps   int
	Best   *time.Duration
	Total  time.Duration
}

// Rows builds the results in leaderboard order.
func Rows(s *model.Snapshot) []Row {
	laps := lo.SliceToMap(s.Laps, func(l model.VehicleLaps) (string, model.VehicleLaps) {
		return l.VehicleID, l
	})
	return lo.Map(s.Leaderboard, func(v model.Vehicle, i int) Row {
		row := Row{Pos: i + 1, Name: v.Name, Player: v.IsPlayer(), Lap: v.Lap}
		if vl, ok := laps[v.ID]; ok {
			row.Laps = len(vl.Laps)
			row.Total = vl.Total()
			if best, found := vl.Best(); found {
				row.Best = &best.LapTime
			}
		}
		return row
	})
}

// Seconds formats d as seconds with millisecond precision.
func Seconds(d time.Duration) string {
	return decimal.NewFromInt(d.Milliseconds()).Shift(-3).StringFixed(3)
}

// Write prints the session result as a table.
func Write(w io.Writer, s *model.Snapshot) error {
	if _, err := fmt.Fprintf(w, "Session %s  %s  lap %d/%d  %ss\n",
		s.SessionKey, s.Phase, s.CurrentLap, s.MaxLaps, Seconds(s.ElapsedTime)); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Pos\tName\tLap\tTimed\tBest\tTotal\t")
	for _, r := range Rows(s) {
		name := r.Name
		if r.Player {
			name += " *"
		}
		best := "-"
		if r.Best != nil {
			best = Seconds(*r.Best)
		}
		total := "-"
		if r.Laps > 0 {
			total = Seconds(r.Total)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t\n", r.Pos, name, r.Lap, r.Laps, best, total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n", s.Commentary)
	return err
}
