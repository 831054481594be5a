package domain

import "time"

type Host string

const (
	HostCLI   Host = "cli"
	HostWeb   Host = "web"
	HostBot   Host = "bot"
	HostProbe Host = "probe"
)

// Exchange is what a host remembers about one bridge call. Payloads are
// never part of it.
type Exchange struct {
	ID          int64
	Host        Host
	ChatID      int64
	Outcome     string
	StatusCode  int
	InputBytes  int
	OutputBytes int
	Duration    time.Duration
	CreatedAt   time.Time
}

type OutcomeCount struct {
	Outcome string
	Count   int64
}
