package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnectedEvent acknowledges a successful out-of-band admission.
type ConnectedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

func Connected(userID string) ConnectedEvent {
	return ConnectedEvent{Type: TypeConnected, UserID: userID}
}

func (ConnectedEvent) Kind() string { return TypeConnected }

// AuthRequiredEvent tells the client its admission carried no usable token.
type AuthRequiredEvent struct {
	Type string `json:"type"`
}

func AuthRequired() AuthRequiredEvent {
	return AuthRequiredEvent{Type: TypeAuthRequired}
}

func (AuthRequiredEvent) Kind() string { return TypeAuthRequired }

// AuthenticatedEvent acknowledges a successful in-channel auth message.
type AuthenticatedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

func Authenticated(userID string) AuthenticatedEvent {
	return AuthenticatedEvent{Type: TypeAuthenticated, UserID: userID}
}

func (AuthenticatedEvent) Kind() string { return TypeAuthenticated }

// AuthFailedEvent reports a failed in-channel auth attempt. The
// connection stays open; the client may retry.
type AuthFailedEvent struct {
	Type string `json:"type"`
}

func AuthFailed() AuthFailedEvent {
	return AuthFailedEvent{Type: TypeAuthFailed}
}

func (AuthFailedEvent) Kind() string { return TypeAuthFailed }

// PongEvent answers a client ping. Timestamp is Unix milliseconds.
type PongEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func Pong(now time.Time) PongEvent {
	return PongEvent{Type: TypePong, Timestamp: now.UnixMilli()}
}

func (PongEvent) Kind() string { return TypePong }

// SubscribedEvent acknowledges a channel-interest declaration.
type SubscribedEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

func Subscribed(channel string) SubscribedEvent {
	return SubscribedEvent{Type: TypeSubscribed, Channel: channel}
}

func (SubscribedEvent) Kind() string { return TypeSubscribed }

// UnsubscribedEvent acknowledges a channel-interest withdrawal.
type UnsubscribedEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

func Unsubscribed(channel string) UnsubscribedEvent {
	return UnsubscribedEvent{Type: TypeUnsubscribed, Channel: channel}
}

func (UnsubscribedEvent) Kind() string { return TypeUnsubscribed }

// ErrorEvent reports an unparseable inbound payload.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func Error(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

func (ErrorEvent) Kind() string { return TypeError }

// UnknownMessageTypeEvent reports an unrecognized inbound kind.
type UnknownMessageTypeEvent struct {
	Type string `json:"type"`
}

func UnknownMessageType() UnknownMessageTypeEvent {
	return UnknownMessageTypeEvent{Type: TypeUnknownMessageType}
}

func (UnknownMessageTypeEvent) Kind() string { return TypeUnknownMessageType }

// BuildUpdateEvent reports a terminal or intermediate native build state,
// typically relayed from the build service's webhook.
type BuildUpdateEvent struct {
	Type    string `json:"type"`
	BuildID string `json:"buildId"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

func BuildUpdate(buildID, status, detail string) BuildUpdateEvent {
	return BuildUpdateEvent{Type: TypeBuildUpdate, BuildID: buildID, Status: status, Detail: detail}
}

func (BuildUpdateEvent) Kind() string { return TypeBuildUpdate }

// BuildProgressEvent reports build pipeline progress.
type BuildProgressEvent struct {
	Type    string  `json:"type"`
	BuildID string  `json:"buildId"`
	Phase   string  `json:"phase"`
	Percent float64 `json:"percent"`
}

func BuildProgress(buildID, phase string, percent float64) BuildProgressEvent {
	return BuildProgressEvent{Type: TypeBuildProgress, BuildID: buildID, Phase: phase, Percent: percent}
}

func (BuildProgressEvent) Kind() string { return TypeBuildProgress }

// PreviewUpdateEvent reports sandbox preview readiness.
type PreviewUpdateEvent struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
	URL       string `json:"url,omitempty"`
	Status    string `json:"status"`
}

func PreviewUpdate(projectID, url, status string) PreviewUpdateEvent {
	return PreviewUpdateEvent{Type: TypePreviewUpdate, ProjectID: projectID, URL: url, Status: status}
}

func (PreviewUpdateEvent) Kind() string { return TypePreviewUpdate }

// GenerationProgressEvent reports code generation progress.
type GenerationProgressEvent struct {
	Type      string  `json:"type"`
	ProjectID string  `json:"projectId"`
	Step      string  `json:"step"`
	Message   string  `json:"message,omitempty"`
	Percent   float64 `json:"percent"`
}

func GenerationProgress(projectID, step, message string, percent float64) GenerationProgressEvent {
	return GenerationProgressEvent{Type: TypeGenerationProgress, ProjectID: projectID, Step: step, Message: message, Percent: percent}
}

func (GenerationProgressEvent) Kind() string { return TypeGenerationProgress }

// RawEvent carries an already-serialized producer event, e.g. one
// received over the message bus. Kind is taken from the payload's type
// tag; MarshalJSON emits the payload verbatim.
type RawEvent struct {
	kind    string
	payload json.RawMessage
}

// ProducerKinds are the event kinds external producers may push through
// the relay.
var ProducerKinds = map[string]bool{
	TypeBuildUpdate:        true,
	TypeBuildProgress:      true,
	TypePreviewUpdate:      true,
	TypeGenerationProgress: true,
}

// ParseProducerEvent validates that payload is a JSON object tagged with
// a known producer kind and wraps it for delivery.
func ParseProducerEvent(payload []byte) (RawEvent, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &tag); err != nil {
		return RawEvent{}, fmt.Errorf("parse event: %w", err)
	}
	if !ProducerKinds[tag.Type] {
		return RawEvent{}, fmt.Errorf("unknown producer event type %q", tag.Type)
	}
	return RawEvent{kind: tag.Type, payload: append([]byte(nil), payload...)}, nil
}

func (e RawEvent) Kind() string { return e.kind }

func (e RawEvent) MarshalJSON() ([]byte, error) {
	return e.payload, nil
}
