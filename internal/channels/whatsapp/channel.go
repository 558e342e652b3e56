// Package whatsapp implements the WhatsApp channel adapter (spec §4.3)
// on top of the multi-device WhatsApp Web protocol via whatsmeow.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"

	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/channels"
	"github.com/nextlevelbuilder/vargos/internal/config"
)

// Channel connects to WhatsApp via a linked-device session stored in a
// local sqlite file (cfg.DeviceDB).
type Channel struct {
	*channels.BaseChannel
	cfg     config.WhatsAppConfig
	client  *whatsmeow.Client
	limiter *channels.SendLimiter
}

// New creates a WhatsApp channel from cfg. Initialize must be called
// before Start to load (or create) the device store.
func New(cfg config.WhatsAppConfig) (*Channel, error) {
	if cfg.DeviceDB == "" {
		return nil, fmt.Errorf("whatsapp device_db path is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", cfg.AllowFrom),
		cfg:         cfg,
		limiter:     channels.NewSendLimiter(3, 3),
	}, nil
}

// Initialize opens the device store and builds the whatsmeow client. If no
// device is paired yet, Start will log a pairing QR code to stdout.
func (c *Channel) Initialize(ctx context.Context) error {
	dbLog := waLog.Stdout("whatsapp-store", "ERROR", false)
	container, err := sqlstore.New(ctx, "sqlite", "file:"+c.cfg.DeviceDB+"?_foreign_keys=on", dbLog)
	if err != nil {
		return fmt.Errorf("open whatsapp device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load whatsapp device: %w", err)
	}

	clientLog := waLog.Stdout("whatsapp-client", "ERROR", false)
	c.client = whatsmeow.NewClient(device, clientLog)
	c.client.AddEventHandler(c.handleEvent)
	return nil
}

// Start connects to WhatsApp. If the device has no session yet, a
// background goroutine prints each pairing QR code to stdout as it
// arrives; Start itself returns without waiting for the scan.
func (c *Channel) Start(ctx context.Context) error {
	c.SetStatus(channels.StatusConnecting)

	if c.client.Store.ID == nil {
		qrChan, _ := c.client.GetQRChannel(ctx)
		if err := c.client.Connect(); err != nil {
			c.SetStatus(channels.StatusError)
			return fmt.Errorf("connect whatsapp client: %w", err)
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					art, err := renderPairingQR(evt.Code)
					if err != nil {
						slog.Info("whatsapp pairing required, scan this QR code", "code", evt.Code)
						continue
					}
					fmt.Println(art)
				}
			}
		}()
	} else {
		if err := c.client.Connect(); err != nil {
			c.SetStatus(channels.StatusError)
			return fmt.Errorf("connect whatsapp client: %w", err)
		}
	}

	c.SetStatus(channels.StatusConnected)
	slog.Info("whatsapp channel connected")
	return nil
}

// saveInboundImage downloads an inbound image attachment and persists
// it (plus a thumbnail) under the sending session's media directory
// (spec §6). Failures are logged, not surfaced, since a media download
// problem must never block delivery of the message's text/caption.
func (c *Channel) saveInboundImage(sessionKey string, img whatsmeow.DownloadableMessage) {
	dataDir, err := bootstrap.DataDir()
	if err != nil {
		slog.Warn("whatsapp media: resolve data dir failed", "error", err)
		return
	}
	content, err := c.client.Download(context.Background(), img)
	if err != nil {
		slog.Warn("whatsapp media: download failed", "error", err)
		return
	}
	if _, err := bootstrap.SaveMedia(dataDir, sessionKey, content, "jpg"); err != nil {
		slog.Warn("whatsapp media: save failed", "error", err)
	}
}

// renderPairingQR renders code as an ASCII QR code sized for a
// terminal, so an operator pairing over SSH never needs a second
// device to decode a raw pairing string.
func renderPairingQR(code string) (string, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// Stop disconnects the WhatsApp client.
func (c *Channel) Stop(_ context.Context) error {
	c.client.Disconnect()
	c.SetStatus(channels.StatusDisconnected)
	return nil
}

// Send delivers text to a WhatsApp JID.
func (c *Channel) Send(ctx context.Context, recipientID, text string) error {
	jid, err := types.ParseJID(recipientID)
	if err != nil {
		return fmt.Errorf("invalid whatsapp jid %q: %w", recipientID, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = c.client.SendMessage(ctx, jid, whatsmeow.BuildTextMessage(text))
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

// handleEvent normalizes an inbound whatsmeow message event into a
// bus.RawMessage and hands it to the registered inbound handler.
func (c *Channel) handleEvent(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok || msg.Info.IsFromMe {
		return
	}

	content := msg.Message.GetConversation()
	if content == "" {
		if ext := msg.Message.GetExtendedTextMessage(); ext != nil {
			content = ext.GetText()
		}
	}

	sessionKey := "whatsapp:" + msg.Info.Sender.User
	if img := msg.Message.GetImageMessage(); img != nil {
		c.saveInboundImage(sessionKey, img)
		if content == "" {
			content = img.GetCaption()
		}
	}
	if content == "" {
		return
	}

	raw := bus.RawMessage{
		Fingerprint: fmt.Sprintf("whatsapp:%s", msg.Info.ID),
		From:        msg.Info.Sender.User,
		Channel:     "whatsapp",
		Content:     content,
		Type:        bus.InputText,
		Metadata: map[string]string{
			"local_key": msg.Info.Chat.String(),
			"is_group":  fmt.Sprintf("%t", msg.Info.IsGroup),
		},
		Timestamp: msg.Info.Timestamp,
	}

	c.Deliver(raw)
}
