package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"textbridge/internal/bot"
	"textbridge/internal/bridge"
	"textbridge/internal/config"
	"textbridge/internal/database"
	"textbridge/internal/domain"
	"textbridge/internal/journal"
	"textbridge/internal/metrics"
	"textbridge/internal/scheduler"
	"textbridge/internal/web"
)

const usage = `Usage:
  textbridge send [--field body|text] [--endpoint url] [text...]
                                                  forward text; with no args it is
                                                  read from stdin until EOF (Ctrl-D)
  textbridge serve                                run the web host
  textbridge bot                                  run the Telegram host
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	log := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "send":
		return runSend(ctx, cfg, args[1:], stdin, stdout, stderr, log)
	case "serve":
		return exitCode(ctx, log, "serve", runServe(ctx, cfg, log))
	case "bot":
		return exitCode(ctx, log, "bot", runBot(ctx, cfg, log))
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

func exitCode(ctx context.Context, log *slog.Logger, mode string, err error) int {
	if err != nil {
		log.ErrorContext(ctx, "Exiting with error",
			"error", err,
			"mode", mode)

		return 1
	}

	return 0
}

func runSend(
	ctx context.Context,
	cfg config.Config,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	log *slog.Logger,
) int {
	flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	field := flagSet.String("field", cfg.EnvelopeField, "envelope field name (body or text)")
	endpoint := flagSet.String("endpoint", cfg.EndpointURL, "endpoint URL")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	text, err := sendText(ctx, flagSet.Args(), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	cfg.EndpointURL = *endpoint
	cfg.EnvelopeField = *field

	st, err := newStack(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer st.close(ctx, cfg, log)

	body, err := st.sender(domain.HostCLI, log).Send(ctx, text)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", bridge.OutcomeLabel(err), err)
		return 1
	}

	fmt.Fprint(stdout, body)
	if !strings.HasSuffix(body, "\n") {
		fmt.Fprintln(stdout)
	}

	return 0
}

// sendText joins args with spaces or, when there are none, reads stdin
// until EOF or until ctx is done. A single trailing newline from stdin is
// dropped.
func sendText(ctx context.Context, args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(stdin)
		done <- result{data: data, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return "", fmt.Errorf("read stdin: %w", context.Cause(ctx))
	}

	if res.err != nil {
		return "", fmt.Errorf("read stdin: %w", res.err)
	}

	text := strings.TrimSuffix(string(res.data), "\n")
	text = strings.TrimSuffix(text, "\r")

	return text, nil
}

type stack struct {
	db       *database.Database
	registry *prometheus.Registry
	metrics  *metrics.BridgeMetrics
	bridge   *bridge.Bridge
}

func newStack(ctx context.Context, cfg config.Config, log *slog.Logger) (*stack, error) {
	b, err := bridge.New(cfg.EndpointURL,
		bridge.WithEnvelopeField(cfg.EnvelopeField),
		bridge.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create bridge: %w", err)
	}
	log.InfoContext(ctx, "Bridge is initialized",
		"endpoint", b.Endpoint(),
		"envelopeField", b.EnvelopeField())

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &stack{
		db:       db,
		registry: registry,
		metrics:  metrics.NewBridgeMetrics(registry),
		bridge:   b,
	}, nil
}

// sender returns the bridge instrumented and journaled for host.
func (s *stack) sender(host domain.Host, log *slog.Logger) bridge.Sender {
	return journal.NewRecorder(metrics.Instrument(s.bridge, s.metrics), s.db, host, log)
}

func (s *stack) close(ctx context.Context, cfg config.Config, log *slog.Logger) {
	if err := s.db.Close(); err != nil {
		log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", cfg.DBPath)
	}
}

func (s *stack) startProbe(ctx context.Context, cfg config.Config, log *slog.Logger) (func(), error) {
	if cfg.ProbeSpec == "" {
		return func() {}, nil
	}

	sched := scheduler.New(ctx, s.sender(domain.HostProbe, log), cfg.ProbeSpec, cfg.ProbeText, log)
	if err := sched.Start(); err != nil {
		return nil, fmt.Errorf("start probe: %w", err)
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.ProbeSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	return sched.Stop, nil
}

func runServe(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	start := time.Now()

	s, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.close(ctx, cfg, log)

	stopProbe, err := s.startProbe(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopProbe()

	router, err := web.NewRouter(web.Options{
		Sender:   s.sender(domain.HostWeb, log),
		Endpoint: s.bridge.Endpoint(),
		Gatherer: s.registry,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	if err = web.Run(ctx, cfg.HTTPAddr, router, log); err != nil {
		return fmt.Errorf("run web host: %w", err)
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}

func runBot(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	start := time.Now()

	if err := cfg.RequireToken(); err != nil {
		return err
	}

	s, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.close(ctx, cfg, log)

	stopProbe, err := s.startProbe(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopProbe()

	botInst, err := bot.New(cfg.Token, s.sender(domain.HostBot, log), s.db, cfg.AllowedUsers, log)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}
	defer botInst.Stop()
	log.InfoContext(ctx, "Bot is started",
		"allowedUsersCount", len(cfg.AllowedUsers))

	botInst.Start(ctx)

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}
