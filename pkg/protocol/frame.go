// Package protocol defines the Vargos Gateway wire format: three frame
// variants (request, response, event) exchanged as JSON text over a
// WebSocket connection, plus the compact error code vocabulary shared
// by every service.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// FrameType is the discriminator carried by every frame.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
)

// Error code vocabulary (spec §6/§7). Every error surfaced across the
// wire uses one of these codes.
const (
	ErrProtocolError      = "PROTOCOL_ERROR"
	ErrTimeout            = "TIMEOUT"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrAlreadyRegistered  = "ALREADY_REGISTERED"
	ErrToolForbidden      = "TOOL_FORBIDDEN"
	ErrBackpressure       = "BACKPRESSURE"
	ErrValidation         = "VALIDATION"
	ErrInternal           = "INTERNAL"
)

// ErrorPayload is the shape of Response.error.
type ErrorPayload struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *ErrorPayload) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an ErrorPayload, JSON-encoding details if given.
func NewError(code, message string, details interface{}) *ErrorPayload {
	ep := &ErrorPayload{Code: code, Message: message}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			ep.Details = b
		}
	}
	return ep
}

// RequestFrame correlates with exactly one Response within its connection.
type RequestFrame struct {
	Type   FrameType       `json:"type"`
	ID     string          `json:"id"`
	Target string          `json:"target"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame carries either a payload or an error, never both.
type ResponseFrame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id"`
	Ok      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// EventFrame is published by a service; Seq is monotonic per Source.
type EventFrame struct {
	Type    FrameType       `json:"type"`
	Source  string          `json:"source"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq"`
}

// discriminatorEnvelope is decoded first to sniff the frame type before
// committing to a concrete variant.
type discriminatorEnvelope struct {
	Type FrameType `json:"type"`
}

// DecodeFrame parses a UTF-8 JSON string into one of the three Frame
// variants, returning *RequestFrame, *ResponseFrame, or *EventFrame.
// Any structural problem (missing/unknown discriminator, missing
// required field, malformed request id) yields a PROTOCOL_ERROR.
func DecodeFrame(data []byte) (interface{}, error) {
	var env discriminatorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewError(ErrProtocolError, "malformed frame: "+err.Error(), nil)
	}

	switch env.Type {
	case FrameRequest:
		var f RequestFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, NewError(ErrProtocolError, "malformed request frame", nil)
		}
		if _, err := uuid.Parse(f.ID); err != nil {
			return nil, NewError(ErrProtocolError, "request id is not a well-formed UUID", nil)
		}
		if f.Target == "" || f.Method == "" {
			return nil, NewError(ErrProtocolError, "request missing target or method", nil)
		}
		return &f, nil

	case FrameResponse:
		var f ResponseFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, NewError(ErrProtocolError, "malformed response frame", nil)
		}
		if f.ID == "" {
			return nil, NewError(ErrProtocolError, "response missing id", nil)
		}
		return &f, nil

	case FrameEvent:
		var f EventFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, NewError(ErrProtocolError, "malformed event frame", nil)
		}
		if f.Source == "" || f.Event == "" {
			return nil, NewError(ErrProtocolError, "event missing source or event name", nil)
		}
		return &f, nil

	case "":
		return nil, NewError(ErrProtocolError, "frame missing type discriminator", nil)

	default:
		return nil, NewError(ErrProtocolError, "unknown frame type: "+string(env.Type), nil)
	}
}

// EncodeFrame serializes any frame variant back to JSON. encoding/json
// always emits struct fields in declaration order, so a frame survives
// round-trip (decode → encode → decode) under this codec.
func EncodeFrame(f interface{}) ([]byte, error) {
	return json.Marshal(f)
}

// NewRequest builds a RequestFrame with a fresh UUID.
func NewRequest(target, method string, params interface{}) (*RequestFrame, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode request params: %w", err)
	}
	return &RequestFrame{
		Type:   FrameRequest,
		ID:     uuid.NewString(),
		Target: target,
		Method: method,
		Params: p,
	}, nil
}

// NewOKResponse builds a successful Response for the given request id.
func NewOKResponse(id string, payload interface{}) *ResponseFrame {
	p, _ := json.Marshal(payload)
	return &ResponseFrame{Type: FrameResponse, ID: id, Ok: true, Payload: p}
}

// NewErrorResponse builds a failed Response for the given request id.
func NewErrorResponse(id, code, message string) *ResponseFrame {
	return &ResponseFrame{Type: FrameResponse, ID: id, Ok: false, Error: NewError(code, message, nil)}
}

// NewEvent builds an Event frame. Seq must already have been assigned
// by the event bus (monotonic per source).
func NewEvent(source, event string, payload interface{}, seq int64) (*EventFrame, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	return &EventFrame{Type: FrameEvent, Source: source, Event: event, Payload: p, Seq: seq}, nil
}
