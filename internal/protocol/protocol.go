// Package protocol defines the control-channel messages exchanged
// between the relay and its clients. Inbound and outbound kinds are
// closed sets: clients only ever send the four control kinds, and every
// outbound frame is built through one of the constructors here.
package protocol

// Inbound control message kinds.
const (
	TypeAuth        = "auth"
	TypePing        = "ping"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Outbound message kinds.
const (
	TypeConnected          = "connected"
	TypeAuthRequired       = "auth_required"
	TypeAuthenticated      = "authenticated"
	TypeAuthFailed         = "auth_failed"
	TypePong               = "pong"
	TypeSubscribed         = "subscribed"
	TypeUnsubscribed       = "unsubscribed"
	TypeError              = "error"
	TypeUnknownMessageType = "unknown_message_type"

	TypeBuildUpdate        = "build_update"
	TypeBuildProgress      = "build_progress"
	TypePreviewUpdate      = "preview_update"
	TypeGenerationProgress = "generation_progress"
)

// Inbound is a control message received from a client. The zero fields
// of kinds that don't use them are simply absent on the wire.
type Inbound struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// Event is an outbound payload destined for one or all users'
// connections. Kind returns the wire value of the type tag.
type Event interface {
	Kind() string
}
