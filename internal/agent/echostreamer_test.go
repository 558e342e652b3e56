package agent

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

func TestEchoStreamerEchoesContentAsOneDelta(t *testing.T) {
	var deltas []string
	cb := StreamCallbacks{
		OnDelta: func(text string) { deltas = append(deltas, text) },
	}

	err := EchoStreamer{}.Run(context.Background(), "cli:local", "a system prompt", bus.NormalizedInput{Content: "hello"}, cb)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(deltas) != 1 || deltas[0] != "hello" {
		t.Fatalf("deltas = %v, want [hello]", deltas)
	}
}
