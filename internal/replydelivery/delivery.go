// Package replydelivery chunks a finished agent reply into
// transport-sized pieces and sends them in order, retrying individual
// chunks with exponential backoff (spec §4.5).
package replydelivery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Defaults mirror the spec's chunking/retry knobs.
const (
	DefaultMaxChunkSize = 3500
	DefaultMaxRetries   = 3
	DefaultRetryBaseMs  = 500
)

// SendFunc delivers one chunk to the channel adapter's send path.
type SendFunc func(ctx context.Context, chunk string) error

// Options configures a single Deliver call.
type Options struct {
	MaxChunkSize int
	MaxRetries   int
	RetryBaseMs  int64

	// sleep is overridable so tests don't wait out real backoff delays.
	sleep func(d time.Duration)
}

func (o Options) withDefaults() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryBaseMs <= 0 {
		o.RetryBaseMs = DefaultRetryBaseMs
	}
	if o.sleep == nil {
		o.sleep = func(d time.Duration) { time.Sleep(d) }
	}
	return o
}

// sentenceBoundary matches a sentence terminator immediately followed
// by whitespace; the match's end offset is the split point, so the
// terminator and trailing whitespace stay attached to the preceding
// segment.
var sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)

// Chunk splits text into pieces using the first strategy (in order)
// that produces every piece within maxChunkSize runes. Every strategy
// partitions text exactly — concatenating the returned chunks always
// reconstructs the original text verbatim.
func Chunk(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	if runeLen(text) <= maxChunkSize {
		return []string{text}
	}

	if chunks, ok := splitAndGroup(text, "\n\n", maxChunkSize); ok {
		return chunks
	}

	if chunks, ok := splitAndGroupRegex(text, sentenceBoundary, maxChunkSize); ok {
		return chunks
	}

	return hardCut(text, maxChunkSize)
}

// splitAndGroup splits text into delimiter-terminated segments (each
// segment, except possibly the last, ends with sep) and greedily packs
// adjacent segments into chunks no larger than maxChunkSize. Returns
// ok=false if any single segment alone exceeds maxChunkSize, in which
// case the caller should fall through to the next strategy.
func splitAndGroup(text, sep string, maxChunkSize int) ([]string, bool) {
	segments := strings.SplitAfter(text, sep)
	return groupSegments(segments, maxChunkSize)
}

// splitAndGroupRegex is the regex-boundary analogue of splitAndGroup.
func splitAndGroupRegex(text string, boundary *regexp.Regexp, maxChunkSize int) ([]string, bool) {
	matches := boundary.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil, false
	}

	segments := make([]string, 0, len(matches)+1)
	prev := 0
	for _, m := range matches {
		end := m[1]
		segments = append(segments, text[prev:end])
		prev = end
	}
	if prev < len(text) {
		segments = append(segments, text[prev:])
	}
	return groupSegments(segments, maxChunkSize)
}

func groupSegments(segments []string, maxChunkSize int) ([]string, bool) {
	var chunks []string
	var current strings.Builder

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if runeLen(seg) > maxChunkSize {
			return nil, false
		}
		if current.Len() > 0 && runeLen(current.String())+runeLen(seg) > maxChunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(seg)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if len(chunks) == 0 {
		return nil, false
	}
	return chunks, true
}

// hardCut always succeeds: it cuts text every maxChunkSize runes with
// no regard for word or sentence boundaries.
func hardCut(text string, maxChunkSize int) []string {
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += maxChunkSize {
		end := i + maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}

// Deliver chunks text and sends each chunk in order via send, retrying
// a failing chunk with exponential backoff (retryBaseMs * 2^attempt)
// before giving up after maxRetries retries. Chunks are always sent
// sequentially, never concurrently, so a caller never observes
// out-of-order delivery even under retry.
func Deliver(ctx context.Context, send SendFunc, text string, opts Options) error {
	opts = opts.withDefaults()
	chunks := Chunk(text, opts.MaxChunkSize)

	for i, chunk := range chunks {
		if err := deliverChunk(ctx, send, chunk, opts); err != nil {
			return fmt.Errorf("deliver chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func deliverChunk(ctx context.Context, send SendFunc, chunk string, opts Options) error {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(opts.RetryBaseMs*(1<<(attempt-1))) * time.Millisecond
			opts.sleep(backoff)
		}
		if err := send(ctx, chunk); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
