// Package cli implements the interactive stdio channel adapter used by
// `vargos chat` (spec §4.11's fourth adapter, alongside Telegram,
// WhatsApp, and Discord): lines typed on stdin become inbound messages
// from a single fixed sender, and Send writes assistant replies to
// stdout.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/channels"
)

// SenderID is the fixed, single-user sender identity for the
// interactive CLI channel — there is only ever one local operator.
const SenderID = "local"

// Channel reads lines from in and writes replies to out. It has no
// reconnect/backoff concerns (spec §4.11's Reconnector is for network
// adapters); Start/Stop only toggle the scanning goroutine.
type Channel struct {
	*channels.BaseChannel
	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a CLI channel reading from in and writing to out.
func New(in io.Reader, out io.Writer) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("cli", nil),
		in:          in,
		out:         out,
	}
}

// Initialize is a no-op: the CLI channel has no auth state to load.
func (c *Channel) Initialize(context.Context) error { return nil }

// Start begins scanning in for lines, one inbound message per line.
func (c *Channel) Start(ctx context.Context) error {
	c.SetStatus(channels.StatusConnecting)

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.scan(runCtx)

	c.SetStatus(channels.StatusConnected)
	return nil
}

func (c *Channel) scan(ctx context.Context) {
	defer close(c.done)

	scanner := bufio.NewScanner(c.in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			c.Deliver(bus.RawMessage{
				Fingerprint: "",
				From:        SenderID,
				Channel:     "cli",
				Content:     line,
				Type:        bus.InputText,
			})
		}
	}
}

// Stop cancels the scanning goroutine and waits for it to exit.
func (c *Channel) Stop(context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	c.SetStatus(channels.StatusDisconnected)
	return nil
}

// Send writes text to out as-is, followed by a newline.
func (c *Channel) Send(_ context.Context, _ string, text string) error {
	_, err := fmt.Fprintln(c.out, text)
	return err
}
