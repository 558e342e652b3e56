// Package telegram implements the Telegram channel adapter (spec §4.3)
// on top of the Telegram Bot API via telego.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/channels"
	"github.com/nextlevelbuilder/vargos/internal/config"
)

const maxMessageLen = 4096

// Channel connects to Telegram via long-polling.
type Channel struct {
	*channels.BaseChannel
	cfg     config.TelegramConfig
	bot     *telego.Bot
	limiter *channels.SendLimiter

	cancelUpdates context.CancelFunc
}

// New creates a Telegram channel from cfg. It does not connect — call
// Start to begin polling for updates.
func New(cfg config.TelegramConfig) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	if cfg.Proxy != "" {
		slog.Debug("telegram proxy configured but not wired into transport", "proxy", cfg.Proxy)
	}

	bot, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", cfg.AllowFrom),
		cfg:         cfg,
		bot:         bot,
		limiter:     channels.NewSendLimiter(25, 5), // Telegram: ~30 msg/sec per bot, stay under
	}, nil
}

// Initialize verifies the bot token is valid. Safe to call repeatedly.
func (c *Channel) Initialize(ctx context.Context) error {
	if _, err := c.bot.GetMe(ctx); err != nil {
		return fmt.Errorf("telegram GetMe: %w", err)
	}
	return nil
}

// Start begins long-polling for updates.
func (c *Channel) Start(ctx context.Context) error {
	c.SetStatus(channels.StatusConnecting)

	updateCtx, cancel := context.WithCancel(ctx)
	c.cancelUpdates = cancel

	updates, err := c.bot.UpdatesViaLongPolling(updateCtx, nil)
	if err != nil {
		cancel()
		c.SetStatus(channels.StatusError)
		return fmt.Errorf("telegram long polling: %w", err)
	}

	go func() {
		for update := range updates {
			c.handleUpdate(update)
		}
	}()

	c.SetStatus(channels.StatusConnected)
	slog.Info("telegram channel connected")
	return nil
}

// Stop cancels long-polling.
func (c *Channel) Stop(_ context.Context) error {
	if c.cancelUpdates != nil {
		c.cancelUpdates()
	}
	c.SetStatus(channels.StatusDisconnected)
	return nil
}

// Send delivers text to a Telegram chat id, converting markdown to
// Telegram HTML and chunking if it exceeds Telegram's message limit.
func (c *Channel) Send(ctx context.Context, recipientID, text string) error {
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipientID, err)
	}

	html := markdownToTelegramHTML(text)
	for _, chunk := range chunkHTML(html, maxMessageLen) {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tu.Message(tu.ID(chatID), chunk)
		msg.ParseMode = telego.ModeHTML
		if _, err := c.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("telegram send message: %w", err)
		}
	}
	return nil
}

// handleUpdate normalizes an inbound Telegram update into a bus.RawMessage
// and hands it to the registered inbound handler via BaseChannel.Deliver.
func (c *Channel) handleUpdate(update telego.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message

	from := "unknown"
	if msg.From != nil {
		from = fmt.Sprintf("%d", msg.From.ID)
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		return
	}

	localKey := fmt.Sprintf("%d", msg.Chat.ID)
	if msg.MessageThreadID != 0 {
		localKey = fmt.Sprintf("%s:topic:%d", localKey, msg.MessageThreadID)
	}

	raw := bus.RawMessage{
		Fingerprint: fmt.Sprintf("telegram:%d:%d", msg.Chat.ID, msg.MessageID),
		From:        from,
		Channel:     "telegram",
		Content:     strings.TrimSpace(content),
		Type:        bus.InputText,
		Metadata: map[string]string{
			"local_key":  localKey,
			"chat_id":    fmt.Sprintf("%d", msg.Chat.ID),
			"message_id": fmt.Sprintf("%d", msg.MessageID),
		},
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	c.Deliver(raw)
}

func parseChatID(recipientID string) (int64, error) {
	recipientID, _, _ = strings.Cut(recipientID, ":topic:")
	var id int64
	if _, err := fmt.Sscanf(recipientID, "%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}
