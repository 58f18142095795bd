package race

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/pkg/commentary"
	"github.com/mpapenbr/hyperdrive-race/pkg/commentary/gemini"
	"github.com/mpapenbr/hyperdrive-race/pkg/config"
	"github.com/mpapenbr/hyperdrive-race/pkg/model"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing/player"
	"github.com/mpapenbr/hyperdrive-race/pkg/processing/race"
	natsrelay "github.com/mpapenbr/hyperdrive-race/pkg/relay/nats"
	"github.com/mpapenbr/hyperdrive-race/pkg/report"
	"github.com/mpapenbr/hyperdrive-race/pkg/runner"
	"github.com/mpapenbr/hyperdrive-race/pkg/timer"
	"github.com/mpapenbr/hyperdrive-race/pkg/track"
	"github.com/mpapenbr/hyperdrive-race/pkg/utils"
	"github.com/mpapenbr/hyperdrive-race/pkg/utils/broadcast"
)

var appConfig = config.DefaultConfig() // holds processed config values

//nolint:funlen // flag definitions
func NewRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race",
		Short: "runs a headless race with the autopilot at the controls",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return appConfig.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRace(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&appConfig.MaxLaps,
		"laps",
		appConfig.MaxLaps,
		"number of laps to race")
	cmd.Flags().Uint64Var(&appConfig.Seed,
		"seed",
		0,
		"seed for the AI drivers (0 picks a random seed)")
	cmd.Flags().IntVar(&appConfig.TickRate,
		"tick-rate",
		appConfig.TickRate,
		"simulation frames per second")
	cmd.Flags().DurationVar(&appConfig.MaxTickDelta,
		"max-tick-delta",
		appConfig.MaxTickDelta,
		"upper limit for the time simulated in one frame")
	cmd.Flags().BoolVar(&appConfig.Realtime,
		"realtime",
		false,
		"pace the race with the wall clock instead of running as fast as possible")
	cmd.Flags().DurationVar(&appConfig.RaceTimeout,
		"timeout",
		appConfig.RaceTimeout,
		"abandon the race after this simulated duration")
	cmd.Flags().DurationVar(&appConfig.CommentaryCooldown,
		"commentary-cooldown",
		appConfig.CommentaryCooldown,
		"minimum time between two commentary requests")
	cmd.Flags().DurationVar(&appConfig.CommentaryTimeout,
		"commentary-timeout",
		appConfig.CommentaryTimeout,
		"timeout for a single commentary request")
	cmd.Flags().StringVar(&config.GeminiAPIKey,
		"gemini-api-key",
		"",
		"api key for Gemini commentary (canned lines are used if empty)")
	cmd.Flags().StringVar(&config.GeminiModel,
		"gemini-model",
		gemini.DefaultModel,
		"Gemini model used for commentary")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"publish events and standings to this NATS server")
	cmd.Flags().Uint64Var(&appConfig.StandingsEvery,
		"standings-every",
		appConfig.StandingsEvery,
		"publish standings every n-th frame")
	return cmd
}

//nolint:funlen,cyclop // wiring
func runRace(ctx context.Context, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.EnableTelemetry {
		if telemetry, err := config.SetupTelemetry(ctx); err == nil {
			defer telemetry.Shutdown() //nolint:errcheck // logged on failure
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		if err := otlpruntime.Start(
			otlpruntime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	seed := appConfig.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	log.Info("starting race",
		log.Int("laps", appConfig.MaxLaps),
		log.Uint64("seed", seed),
		log.Bool("realtime", appConfig.Realtime))

	sched := timer.NewVirtual(time.Now())
	gen, err := newGenerator(ctx)
	if err != nil {
		return err
	}
	gate := commentary.NewGate(gen, sched,
		commentary.WithCooldown(appConfig.CommentaryCooldown),
		commentary.WithTimeout(appConfig.CommentaryTimeout),
		commentary.WithContext(ctx))

	eventSource := make(chan model.RaceEvent, 64)
	snapSource := make(chan model.Snapshot, 8)
	events := broadcast.NewServer("events", eventSource, broadcast.WithBufferSize[model.RaceEvent](64))
	snaps := broadcast.NewServer("snapshots", snapSource, broadcast.WithBufferSize[model.Snapshot](8))

	curve := track.Default()
	director, err := race.NewDirector(
		race.WithCurve(curve),
		race.WithScheduler(sched),
		race.WithMaxLaps(appConfig.MaxLaps),
		race.WithMaxTickDelta(appConfig.MaxTickDelta),
		race.WithSeed(seed),
		race.WithPlayerController(player.NewController(curve)),
		race.WithCommentator(gate),
		race.WithEventSink(eventSource),
		race.WithSnapshotSink(snapSource),
	)
	if err != nil {
		return err
	}
	loop := runner.New(director, sched,
		runner.WithInputSource(player.NewAutopilot(curve)),
		runner.WithFrameDelta(appConfig.FrameDelta()),
		runner.WithMaxDelta(appConfig.MaxTickDelta),
		runner.WithRealtime(appConfig.Realtime),
		runner.WithTimeout(appConfig.RaceTimeout))

	var relay *natsrelay.Relay
	if config.NatsURL != "" {
		var closeRelay func()
		if relay, closeRelay, err = newRelay(ctx); err != nil {
			events.Close()
			snaps.Close()
			return err
		}
		defer closeRelay()
	}

	g, gctx := errgroup.WithContext(ctx)
	printerSub := events.Subscribe()
	g.Go(func() error {
		for ev := range printerSub {
			fmt.Fprintf(out, "[%s] %s\n", ev.Kind, ev.Description)
		}
		return nil
	})
	if relay != nil {
		evSub, snapSub := events.Subscribe(), snaps.Subscribe()
		g.Go(func() error {
			return relay.Run(gctx, evSub, snapSub)
		})
	}

	var final model.Snapshot
	g.Go(func() error {
		defer close(eventSource)
		defer close(snapSource)
		var runErr error
		final, runErr = loop.Run(gctx)
		return runErr
	})
	runErr := g.Wait()

	gate.Wait()
	final.Commentary = gate.Text()
	if err := report.Write(out, &final); err != nil {
		return err
	}
	return runErr
}

func newGenerator(ctx context.Context) (commentary.Generator, error) {
	if config.GeminiAPIKey == "" {
		log.Info("no Gemini api key, using canned commentary")
		return commentary.NewCanned(), nil
	}
	log.Info("using Gemini commentary",
		log.String("model", config.GeminiModel),
		log.String("key", utils.Fingerprint(config.GeminiAPIKey)))
	return gemini.New(ctx, config.GeminiAPIKey, gemini.WithModel(config.GeminiModel))
}

func newRelay(ctx context.Context) (*natsrelay.Relay, func(), error) {
	addr := utils.ExtractFromNatsURL(config.NatsURL)
	if addr == "" {
		return nil, nil, fmt.Errorf("invalid nats url %q", config.NatsURL)
	}
	if err := utils.WaitForServices(ctx, []string{addr},
		config.ServiceWait(15*time.Second)); err != nil {
		return nil, nil, err
	}
	nc, err := natsrelay.Connect(config.NatsURL)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := nc.Drain(); err != nil {
			log.Warn("nats drain", log.ErrorField(err))
		}
	}
	return natsrelay.NewRelay(nc, natsrelay.WithStandingsEvery(appConfig.StandingsEvery)), closer, nil
}
