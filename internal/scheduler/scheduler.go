package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"textbridge/internal/bridge"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	probeTimeout          = 30 * time.Second
)

// Scheduler periodically sends a probe text through the bridge so that
// endpoint outages show up in logs, metrics and the journal.
type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	sender bridge.Sender
	spec   string
	text   string
	log    *slog.Logger
}

func New(
	ctx context.Context,
	sender bridge.Sender,
	spec string,
	text string,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		sender: sender,
		spec:   strings.TrimSpace(spec),
		text:   text,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.spec == "" {
		return errors.New("probe spec is empty")
	}

	if _, err := s.cron.AddFunc(s.spec, s.probe); err != nil {
		return fmt.Errorf("add probe (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron and waits for a running probe to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) probe() {
	ctx, cancel := context.WithTimeout(s.ctx, probeTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()
	body, err := s.sender.Send(ctx, s.text)
	elapsed := time.Since(start)

	if err != nil {
		s.log.ErrorContext(ctx, "Probe failed",
			"error", err,
			"outcome", bridge.OutcomeLabel(err),
			"statusCode", bridge.StatusCodeOf(err),
			"durationMs", elapsed.Milliseconds())

		return
	}

	s.log.InfoContext(ctx, "Probe succeeded",
		"outcome", bridge.OutcomeLabel(nil),
		"bodyBytes", len(body),
		"durationMs", elapsed.Milliseconds())
}
