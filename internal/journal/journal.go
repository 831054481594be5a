// Package journal records metadata about bridge calls made by a host.
package journal

import (
	"context"
	"log/slog"
	"time"

	"textbridge/internal/bridge"
	"textbridge/internal/domain"
)

const storeTimeout = 5 * time.Second

type Store interface {
	AddExchange(ctx context.Context, exchange *domain.Exchange) error
}

type chatIDKey struct{}

// WithChatID tags ctx with the chat the call is made for.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

func ChatIDFrom(ctx context.Context) int64 {
	chatID, _ := ctx.Value(chatIDKey{}).(int64)
	return chatID
}

// Recorder is a bridge.Sender that stores an Exchange for every call it
// forwards. Storage failures are logged and never change the result.
type Recorder struct {
	next  bridge.Sender
	store Store
	host  domain.Host
	log   *slog.Logger
	now   func() time.Time
}

func NewRecorder(next bridge.Sender, store Store, host domain.Host, log *slog.Logger) *Recorder {
	return &Recorder{
		next:  next,
		store: store,
		host:  host,
		log:   log,
		now:   time.Now,
	}
}

func (r *Recorder) Send(ctx context.Context, text string) (string, error) {
	start := r.now()
	body, err := r.next.Send(ctx, text)
	elapsed := r.now().Sub(start)

	if r.store == nil {
		return body, err
	}

	exchange := &domain.Exchange{
		Host:        r.host,
		ChatID:      ChatIDFrom(ctx),
		Outcome:     bridge.OutcomeLabel(err),
		StatusCode:  bridge.StatusCodeOf(err),
		InputBytes:  len(text),
		OutputBytes: len(body),
		Duration:    elapsed,
		CreatedAt:   start.UTC(),
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if storeErr := r.store.AddExchange(storeCtx, exchange); storeErr != nil {
		r.log.ErrorContext(ctx, "Failed to record exchange",
			"error", storeErr,
			"host", r.host,
			"chatID", exchange.ChatID,
			"outcome", exchange.Outcome)
	}

	return body, err
}
