package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"textbridge/internal/bridge"
	"textbridge/internal/journal"
)

const replyTimeout = 15 * time.Second

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch {
	case text == "":
		return b.sendMessage(ctx, chatID, onlyTextReply)
	case isCommand(text, "/start"), isCommand(text, "/help"):
		return b.sendMessage(ctx, chatID, welcomeText)
	case isCommand(text, "/history"):
		return b.handleHistoryCommand(ctx, chatID)
	case isCommand(text, "/stats"):
		return b.handleStatsCommand(ctx, chatID)
	default:
		// Message text goes out untrimmed.
		return b.handleText(ctx, chatID, message.Text)
	}
}

func (b *Bot) handleText(ctx context.Context, chatID int64, text string) error {
	var body string

	start := time.Now()
	sendErr := b.withSpinner(ctx, chatID, func() error {
		var err error
		body, err = b.sender.Send(journal.WithChatID(ctx, chatID), text)
		return err
	})

	if sendErr != nil {
		b.log.WarnContext(ctx, "Failed to forward text",
			"error", sendErr,
			"outcome", bridge.OutcomeLabel(sendErr),
			"chatID", chatID,
			"inputBytes", len(text),
			"durationMs", time.Since(start).Milliseconds())
	}

	// The update context may already be done when the call timed out.
	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	if err := b.sendMessage(replyCtx, chatID, formatOutcome(body, sendErr)); err != nil {
		return fmt.Errorf("send outcome: %w", err)
	}

	return nil
}

// isCommand matches "/cmd", "/cmd args" and "/cmd@botname".
func isCommand(text string, command string) bool {
	rest, ok := strings.CutPrefix(text, command)
	if !ok {
		return false
	}

	return rest == "" || strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, "@")
}
