package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HibiscusGuard/pkg/errors"
)

func TestDispatchByKind(t *testing.T) {
	r := New()
	var got json.RawMessage
	r.Register(KindNewAlert, func(payload json.RawMessage) { got = payload })

	frame := []byte(`{"type":"new_alert","alert":{"id":"a1"}}`)
	err := r.HandleFrame(frame)

	require.NoError(t, err)
	assert.JSONEq(t, string(frame), string(got), "handler receives the full frame")
}

func TestMalformedFrameNonFatal(t *testing.T) {
	r := New()
	called := false
	r.Register(KindNewAlert, func(json.RawMessage) { called = true })

	err := r.HandleFrame([]byte(`{"type": `))
	require.Error(t, err)
	assert.Equal(t, errors.CodeProtocol, errors.GetCode(err))
	assert.False(t, called)

	// The stream keeps flowing after a bad frame.
	err = r.HandleFrame([]byte(`{"type":"new_alert"}`))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestMissingTypeDropped(t *testing.T) {
	r := New()
	err := r.HandleFrame([]byte(`{"alert":{"id":"a1"}}`))
	require.Error(t, err)
	assert.Equal(t, errors.CodeProtocol, errors.GetCode(err))
}

func TestUnknownKindIgnored(t *testing.T) {
	r := New()
	err := r.HandleFrame([]byte(`{"type":"server_gossip"}`))
	assert.NoError(t, err)
}

func TestHandlersRunInArrivalOrder(t *testing.T) {
	r := New()
	var order []string
	r.Register(KindNewAlert, func(json.RawMessage) { order = append(order, KindNewAlert) })
	r.Register(KindAlertResolved, func(json.RawMessage) { order = append(order, KindAlertResolved) })

	frames := [][]byte{
		[]byte(`{"type":"new_alert"}`),
		[]byte(`{"type":"alert_resolved"}`),
		[]byte(`{"type":"new_alert"}`),
	}
	for _, f := range frames {
		require.NoError(t, r.HandleFrame(f))
	}

	assert.Equal(t, []string{KindNewAlert, KindAlertResolved, KindNewAlert}, order)
}

func TestRegisterOverwrites(t *testing.T) {
	r := New()
	var hit string
	r.Register(KindResponderUpdate, func(json.RawMessage) { hit = "first" })
	r.Register(KindResponderUpdate, func(json.RawMessage) { hit = "second" })

	require.NoError(t, r.HandleFrame([]byte(`{"type":"responder_update"}`)))
	assert.Equal(t, "second", hit)
}
