package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/palco/internal/simulation"
	"github.com/okian/palco/pkg/logger"
)

// Default configuration constants.
const (
	defaultParticipants = 50
	defaultJudges       = 5
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultLiveWait     = 10 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		participants = flag.Int("participants", defaultParticipants, "Number of participants to register")
		judges       = flag.Int("judges", defaultJudges, "Number of judges scoring every participant")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		liveWait     = flag.Duration("live-wait", defaultLiveWait, "How long to wait for the live board to converge")
		secret       = flag.String("secret", os.Getenv("PALCO_AUTH_SECRET"), "Token signing secret (default $PALCO_AUTH_SECRET)")
		format       = flag.String("log-format", "text", "Log format: text or json")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	cfg := &simulation.Config{
		BaseURL:      *baseURL,
		Participants: *participants,
		Judges:       *judges,
		Workers:      max(*workers, 1),
		Timeout:      *timeout,
		Secret:       *secret,
		LiveWait:     *liveWait,
		Verbose:      *verbose,
	}

	if err := run(cfg); err != nil {
		logger.Get().Error(context.Background(), "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *simulation.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	_, err := simulation.Run(ctx, cfg)
	return err
}
