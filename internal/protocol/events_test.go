package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPongCarriesUnixMillis(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	pong := Pong(now)

	assert.Equal(t, TypePong, pong.Kind())
	assert.Equal(t, now.UnixMilli(), pong.Timestamp)

	data, err := json.Marshal(pong)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","timestamp":1773480413000}`, string(data))
}

func TestAcknowledgementShapes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Connected("u-1"), `{"type":"connected","userId":"u-1"}`},
		{AuthRequired(), `{"type":"auth_required"}`},
		{Authenticated("u-1"), `{"type":"authenticated","userId":"u-1"}`},
		{AuthFailed(), `{"type":"auth_failed"}`},
		{Subscribed("builds"), `{"type":"subscribed","channel":"builds"}`},
		{Unsubscribed("builds"), `{"type":"unsubscribed","channel":"builds"}`},
		{Error("invalid message payload"), `{"type":"error","message":"invalid message payload"}`},
		{UnknownMessageType(), `{"type":"unknown_message_type"}`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.event)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(data))
	}
}

func TestParseProducerEvent(t *testing.T) {
	t.Run("valid event", func(t *testing.T) {
		payload := []byte(`{"type":"build_update","buildId":"b-1","status":"succeeded"}`)

		event, err := ParseProducerEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, TypeBuildUpdate, event.Kind())

		// MarshalJSON must emit the producer's payload verbatim.
		data, err := json.Marshal(event)
		require.NoError(t, err)
		assert.JSONEq(t, string(payload), string(data))
	})

	t.Run("all producer kinds accepted", func(t *testing.T) {
		for kind := range ProducerKinds {
			payload := []byte(`{"type":"` + kind + `"}`)
			event, err := ParseProducerEvent(payload)
			require.NoError(t, err)
			assert.Equal(t, kind, event.Kind())
		}
	})

	t.Run("control kinds rejected", func(t *testing.T) {
		// Producers cannot forge relay acknowledgements.
		for _, kind := range []string{TypeConnected, TypeAuthenticated, TypePong, TypeError} {
			_, err := ParseProducerEvent([]byte(`{"type":"` + kind + `"}`))
			assert.Error(t, err, "kind %q", kind)
		}
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := ParseProducerEvent([]byte(`{"type":"shutdown"}`))
		assert.Error(t, err)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		_, err := ParseProducerEvent([]byte(`{broken`))
		assert.Error(t, err)
	})

	t.Run("payload is copied", func(t *testing.T) {
		payload := []byte(`{"type":"preview_update","projectId":"p-1"}`)
		event, err := ParseProducerEvent(payload)
		require.NoError(t, err)

		payload[len(payload)-2] = '9'

		data, err := json.Marshal(event)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"p-1"`)
	})
}
