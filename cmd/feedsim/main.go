// Command feedsim runs a synthetic scoreboard feed that plays a scripted
// bout over the scoreboard WebSocket protocol. Point the overlay service at
// it to develop without a real scoreboard.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcrderby/crg-overlays/internal/simfeed"
	"github.com/rcrderby/crg-overlays/pkg/logger"
)

// Default configuration constants.
const (
	defaultAddr       = ":8000"
	defaultRosterSize = 12
	defaultTick       = time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	var (
		addr       = flag.String("addr", defaultAddr, "Listen address for the WebSocket feed")
		home       = flag.String("home", "Hometown Heroes", "Home team name")
		away       = flag.String("away", "Visiting Villains", "Away team name")
		rosterSize = flag.Int("roster", defaultRosterSize, "Skaters per team")
		tick       = flag.Duration("tick", defaultTick, "Wall-clock interval between delta batches")
		tournament = flag.String("tournament", "", "Tournament name, empty for none")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get().Named("feedsim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := simfeed.NewServer(simfeed.WithLogger(log))
	mux := http.NewServeMux()
	srv.Register(mux)

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "simulated scoreboard listening", logger.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("feed server failed: " + err.Error() + "\n")
		}
	}()

	game := simfeed.NewGame(srv, simfeed.GameConfig{
		TeamNames:  [2]string{*home, *away},
		RosterSize: *rosterSize,
		Tick:       *tick,
		Tournament: *tournament,
	}, log)
	go game.Run(ctx)

	<-ctx.Done()
	_ = httpSrv.Close()
}
