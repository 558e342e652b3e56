package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/channels"
)

func TestChannelDeliversOneMessagePerLine(t *testing.T) {
	in := strings.NewReader("hello there\nsecond line\n")
	var out bytes.Buffer
	c := New(in, &out)

	received := make(chan bus.RawMessage, 2)
	c.OnInboundMessage(func(raw bus.RawMessage) { received <- raw })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	first := <-received
	second := <-received

	if first.Content != "hello there" || first.From != SenderID || first.Channel != "cli" {
		t.Fatalf("first message = %+v", first)
	}
	if second.Content != "second line" {
		t.Fatalf("second message = %+v", second)
	}
}

func TestChannelStatusTransitions(t *testing.T) {
	c := New(strings.NewReader(""), &bytes.Buffer{})
	if c.Status() != channels.StatusDisconnected {
		t.Fatalf("initial status = %v", c.Status())
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Status() != channels.StatusConnected {
		t.Fatalf("status after Start = %v, want connected", c.Status())
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.Status() != channels.StatusDisconnected {
		t.Fatalf("status after Stop = %v, want disconnected", c.Status())
	}
}

func TestChannelSendWritesToOut(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)
	if err := c.Send(context.Background(), "local", "reply text"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := out.String(); got != "reply text\n" {
		t.Fatalf("out = %q, want %q", got, "reply text\n")
	}
}

func TestChannelSkipsBlankLines(t *testing.T) {
	in := strings.NewReader("\n\nreal line\n")
	c := New(in, &bytes.Buffer{})
	received := make(chan bus.RawMessage, 1)
	c.OnInboundMessage(func(raw bus.RawMessage) { received <- raw })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	select {
	case m := <-received:
		if m.Content != "real line" {
			t.Fatalf("first non-blank message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the one non-blank line")
	}
}
