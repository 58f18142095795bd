package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
)

// Publisher is implemented by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Relay publishes race events and standings of a session to NATS.
// Events go to hdr.<session>.event, standings to hdr.<session>.standings.
type Relay struct {
	pub          Publisher
	prefix       string
	standingsGap uint64
	l            *log.Logger
	lastPhase    model.Phase
	received     uint64
}

type Option func(*Relay)

// WithStandingsEvery publishes only every n-th snapshot. Phase changes are
// always published.
func WithStandingsEvery(n uint64) Option {
	return func(r *Relay) {
		r.standingsGap = max(n, 1)
	}
}

func WithSubjectPrefix(prefix string) Option {
	return func(r *Relay) {
		r.prefix = prefix
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Relay) {
		r.l = l
	}
}

func NewRelay(pub Publisher, opts ...Option) *Relay {
	r := &Relay{
		pub:          pub,
		prefix:       "hdr",
		standingsGap: 30,
		lastPhase:    -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.l == nil {
		r.l = log.Default().Named("relay")
	}
	return r
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("hdr"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", log.ErrorField(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	return nc, nil
}

// Run relays until ctx is done or both channels are closed.
//
//nolint:whitespace // editor/linter issue
func (r *Relay) Run(
	ctx context.Context,
	events <-chan model.RaceEvent,
	snaps <-chan model.Snapshot,
) error {
	for events != nil || snaps != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.PublishEvent(ev)
		case s, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			r.received++
			if s.Phase != r.lastPhase || r.received%r.standingsGap == 0 {
				r.PublishStandings(&s)
			}
		}
	}
	return nil
}

func (r *Relay) subject(session, kind string) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, session, kind)
}

func (r *Relay) PublishEvent(ev model.RaceEvent) {
	msg := map[string]any{
		"kind":        ev.Kind.String(),
		"session":     ev.SessionKey,
		"lap":         ev.Lap,
		"rank":        ev.Rank,
		"total":       ev.Total,
		"description": ev.Description,
		"timestamp":   ev.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	r.publish(r.subject(ev.SessionKey, "event"), msg)
}

func (r *Relay) PublishStandings(s *model.Snapshot) {
	r.lastPhase = s.Phase
	entries := lo.Map(s.Leaderboard, func(v model.Vehicle, i int) any {
		return map[string]any{
			"pos":      i + 1,
			"id":       v.ID,
			"name":     v.Name,
			"lap":      v.Lap,
			"progress": v.Progress,
			"player":   v.IsPlayer(),
		}
	})
	msg := map[string]any{
		"session":    s.SessionKey,
		"frame":      s.Frame,
		"phase":      s.Phase.String(),
		"lap":        s.CurrentLap,
		"maxLaps":    s.MaxLaps,
		"elapsedMs":  s.ElapsedTime.Milliseconds(),
		"commentary": s.Commentary,
		"standings":  entries,
	}
	r.publish(r.subject(s.SessionKey, "standings"), msg)
}

func (r *Relay) publish(subj string, msg map[string]any) {
	data := oj.JSON(msg, &oj.Options{Sort: true})
	if err := r.pub.Publish(subj, []byte(data)); err != nil {
		r.l.Warn("publish failed", log.String("subject", subj), log.ErrorField(err))
		return
	}
	r.l.Debug("published", log.String("subject", subj))
}
