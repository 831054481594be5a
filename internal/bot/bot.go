package bot

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"textbridge/internal/bridge"
	"textbridge/internal/database"
	"textbridge/internal/ratelimiter"
)

const updateProcessingTimeout = 60 * time.Second

type Bot struct {
	api          *tgbot.Bot
	sender       bridge.Sender
	db           *database.Database
	rateLimiter  *ratelimiter.RateLimiter
	allowedUsers []int64
	log          *slog.Logger
}

// New connects to Telegram. Every text message from an allowed user is
// forwarded through sender.
func New(
	token string,
	sender bridge.Sender,
	db *database.Database,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	return newBot(token, sender, db, allowedUsers, log)
}

func newBot(
	token string,
	sender bridge.Sender,
	db *database.Database,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...tgbot.Option,
) (*Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}
	if sender == nil {
		return nil, errors.New("sender is nil")
	}

	b := &Bot{
		sender:       sender,
		db:           db,
		rateLimiter:  ratelimiter.New(log),
		allowedUsers: allowedUsers,
		log:          log,
	}

	opts = append([]tgbot.Option{
		tgbot.WithDefaultHandler(b.handleUpdate),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram API error",
				"error", err)
		}),
	}, opts...)

	api, err := tgbot.New(token, opts...)
	if err != nil {
		b.rateLimiter.Stop()
		return nil, err
	}
	b.api = api

	return b, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.api.Start(ctx)
	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	message := update.Message
	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.userAllowed(userID) {
		b.log.DebugContext(updateCtx, "User is not allowed",
			"userID", userID,
			"chatID", chatID,
			"username", message.From.Username,
			"chatType", message.Chat.Type)

		return
	}

	if err := b.handleMessage(updateCtx, message); err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"userID", userID,
			"chatType", message.Chat.Type,
			"messageID", message.ID)
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	return b.rateLimiter.Do(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   normalizedText,
			// See https://core.telegram.org/bots/api#markdownv2-style.
			ParseMode: models.ParseModeMarkdown,
			LinkPreviewOptions: &models.LinkPreviewOptions{
				IsDisabled: tgbot.True(),
			},
		})
		return err
	})
}
