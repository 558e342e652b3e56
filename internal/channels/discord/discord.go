// Package discord implements the Discord channel adapter (spec §4.4)
// on top of the Discord gateway via discordgo.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/channels"
	"github.com/nextlevelbuilder/vargos/internal/config"
)

const maxMessageLen = 2000

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string
	limiter   *channels.SendLimiter
}

// New creates a Discord channel from cfg. It does not connect — call
// Start to open the gateway session.
func New(cfg config.DiscordConfig) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", cfg.AllowFrom),
		session:     session,
		config:      cfg,
		limiter:     channels.NewSendLimiter(5, 5), // Discord: 5 req/sec per channel
	}, nil
}

// Initialize is a no-op for Discord: there is no credential check short of
// actually opening the gateway, which Start performs.
func (c *Channel) Initialize(_ context.Context) error { return nil }

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	c.SetStatus(channels.StatusConnecting)
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		c.SetStatus(channels.StatusError)
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		c.SetStatus(channels.StatusError)
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetStatus(channels.StatusConnected)
	slog.Info("discord channel connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	c.SetStatus(channels.StatusDisconnected)
	return c.session.Close()
}

// Send delivers text to a Discord channel id, chunking at Discord's
// 2000-character message limit.
func (c *Channel) Send(ctx context.Context, recipientID, text string) error {
	if recipientID == "" {
		return fmt.Errorf("empty discord channel id")
	}
	for _, chunk := range chunkPlain(text, maxMessageLen) {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.session.ChannelMessageSend(recipientID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// chunkPlain splits content at newline boundaries where possible,
// otherwise at maxLen.
func chunkPlain(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cutAt := maxLen
		if idx := lastIndexByte(content[:maxLen], '\n'); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, content[:cutAt])
		content = content[cutAt:]
	}
	return chunks
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// handleMessage normalizes an inbound Discord message into a
// bus.RawMessage and hands it to the registered inbound handler.
func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botUserID || m.Author.Bot {
		return
	}

	content := m.Content
	for _, att := range m.Attachments {
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("[attachment: %s]", att.URL)
	}
	if content == "" {
		return
	}

	raw := bus.RawMessage{
		Fingerprint: fmt.Sprintf("discord:%s:%s", m.ChannelID, m.ID),
		From:        m.Author.ID,
		Channel:     "discord",
		Content:     content,
		Type:        bus.InputText,
		Metadata: map[string]string{
			"local_key":  m.ChannelID,
			"username":   m.Author.Username,
			"guild_id":   m.GuildID,
			"is_dm":      fmt.Sprintf("%t", m.GuildID == ""),
			"message_id": m.ID,
		},
		Timestamp: time.Now(),
	}

	c.Deliver(raw)
}
