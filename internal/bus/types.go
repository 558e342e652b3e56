// Package bus holds the small set of types and coalescing primitives
// shared between channel adapters and the inbound pipeline: the
// normalized message shape, the dedupe cache, and the debouncer.
package bus

import "time"

// InputType enumerates the NormalizedInput content kinds (spec §3).
type InputType string

const (
	InputText  InputType = "text"
	InputImage InputType = "image"
	InputVoice InputType = "voice"
	InputFile  InputType = "file"
	InputVideo InputType = "video"
)

// InputSource identifies where a NormalizedInput came from.
type InputSource struct {
	Channel    string `json:"channel"`
	UserID     string `json:"userId"`
	SessionKey string `json:"sessionKey"`
}

// NormalizedInput is the channel-agnostic shape the inbound pipeline
// hands to the session queue (spec §3).
type NormalizedInput struct {
	Type      InputType         `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Source    InputSource       `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
}

// RawMessage is what a channel adapter hands to its OnInboundMessage
// callback before dedupe/debounce/normalization: one platform-native
// message, already stripped of transport-specific framing.
type RawMessage struct {
	Fingerprint string
	From        string // raw sender id, channel-native form
	Channel     string
	Content     string
	Type        InputType
	Metadata    map[string]string
	Timestamp   time.Time
}
