package replydelivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func concat(chunks []string) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c)
	}
	return sb.String()
}

func TestChunk_FitsInOneChunk(t *testing.T) {
	text := "short reply"
	chunks := Chunk(text, 100)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("chunks = %v, want single chunk", chunks)
	}
}

func TestChunk_ParagraphSplitPreservesText(t *testing.T) {
	text := "First paragraph with some words.\n\nSecond paragraph here.\n\nThird and final paragraph of the reply."
	chunks := Chunk(text, 40)

	for _, c := range chunks {
		if runeLen(c) > 40 {
			t.Fatalf("chunk %q exceeds max size", c)
		}
	}
	if got := concat(chunks); got != text {
		t.Fatalf("concatenated chunks = %q, want %q", got, text)
	}
}

func TestChunk_SentenceSplitPreservesText(t *testing.T) {
	text := "One sentence here. Two sentence follows! Three is a question? Four closes it out."
	chunks := Chunk(text, 25)

	for _, c := range chunks {
		if runeLen(c) > 25 {
			t.Fatalf("chunk %q exceeds max size", c)
		}
	}
	if got := concat(chunks); got != text {
		t.Fatalf("concatenated chunks = %q, want %q", got, text)
	}
}

func TestChunk_HardCutPreservesText(t *testing.T) {
	text := strings.Repeat("a", 250) // no paragraph or sentence boundaries at all
	chunks := Chunk(text, 100)

	want := []string{strings.Repeat("a", 100), strings.Repeat("a", 100), strings.Repeat("a", 50)}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
	if got := concat(chunks); got != text {
		t.Fatalf("concatenated chunks lost data")
	}
}

func TestDeliver_ChunkedReplyWithRetry(t *testing.T) {
	// End-to-end scenario 5.
	text := strings.Repeat("A", 250)
	var sent []string
	callCount := 0
	failedOnce := false

	send := func(_ context.Context, chunk string) error {
		callCount++
		sent = append(sent, chunk)
		if len(sent) == 2 && !failedOnce {
			failedOnce = true
			// discard this attempt's recorded chunk; it will be resent
			sent = sent[:1]
			return errors.New("transient failure")
		}
		return nil
	}

	opts := Options{MaxChunkSize: 100, MaxRetries: 2, RetryBaseMs: 1, sleep: func(time.Duration) {}}
	if err := Deliver(context.Background(), send, text, opts); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	if callCount != 4 {
		t.Fatalf("callCount = %d, want 4", callCount)
	}
	want := []string{strings.Repeat("A", 100), strings.Repeat("A", 100), strings.Repeat("A", 50)}
	if len(sent) != len(want) {
		t.Fatalf("sent = %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestDeliver_ExhaustsRetriesAndPropagatesError(t *testing.T) {
	send := func(_ context.Context, chunk string) error {
		return errors.New("permanent failure")
	}
	opts := Options{MaxChunkSize: 100, MaxRetries: 1, RetryBaseMs: 1, sleep: func(time.Duration) {}}

	err := Deliver(context.Background(), send, "short", opts)
	if err == nil {
		t.Fatalf("expected error after retries exhausted")
	}
}

func TestDeliver_NeverSendsOutOfOrder(t *testing.T) {
	text := strings.Repeat("word ", 60)
	var order []int
	send := func(_ context.Context, chunk string) error {
		order = append(order, len(order))
		return nil
	}
	opts := Options{MaxChunkSize: 30, sleep: func(time.Duration) {}}
	if err := Deliver(context.Background(), send, text, opts); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	for i, v := range order {
		if i != v {
			t.Fatalf("out of order delivery: %v", order)
		}
	}
}
