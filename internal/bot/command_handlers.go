package bot

import (
	"context"
	"errors"
	"fmt"

	"textbridge/internal/domain"
)

const historyLimit = 10

const welcomeText = `🤖 *Welcome to textbridge\!*

Send me any text and I will forward it to the configured endpoint and show you what it answered\.

– See your last requests with /history
– See request outcome counts with /stats`

const onlyTextReply = "✖️ Please send some text\\."

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64) error {
	if b.db == nil {
		return b.sendMessage(ctx, chatID, journalDisabledReply)
	}

	exchanges, err := b.db.GetRecentExchanges(ctx, domain.HostBot, chatID, historyLimit)
	if err != nil {
		errs := []error{fmt.Errorf("get recent exchanges: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, "❌ Failed\\."); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessage(ctx, chatID, formatHistory(exchanges))
}

func (b *Bot) handleStatsCommand(ctx context.Context, chatID int64) error {
	if b.db == nil {
		return b.sendMessage(ctx, chatID, journalDisabledReply)
	}

	counts, err := b.db.CountExchangesByOutcome(ctx, domain.HostBot, chatID)
	if err != nil {
		errs := []error{fmt.Errorf("count exchanges by outcome: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, "❌ Failed\\."); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessage(ctx, chatID, formatStats(counts))
}
