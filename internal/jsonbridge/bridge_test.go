package jsonbridge

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/client"
)

const recvTimeout = time.Second

// TestExtraRoundTrip is spec §8 S6.
func TestExtraRoundTrip(t *testing.T) {
	mgr := client.NewManager()
	defer mgr.Finish()
	b := NewBridge(mgr)

	id := mgr.CreateClientId()
	b.Send(id, []byte(`{"@type":"testSquareInt","value":3,"@extra":{"k":"v"}}`))

	data := b.Receive(recvTimeout)
	require.NotNil(t, data)
	require.Contains(t, string(data), `"@extra":{"k":"v"}`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, float64(9), decoded["value"])
	require.Equal(t, "testInt", decoded["@type"])
}

func TestSendUnknownConstructorYieldsParseError(t *testing.T) {
	mgr := client.NewManager()
	defer mgr.Finish()
	b := NewBridge(mgr)

	id := mgr.CreateClientId()
	b.Send(id, []byte(`{"@type":"bogusConstructor"}`))

	data := b.Receive(recvTimeout)
	require.NotNil(t, data)
	require.True(t, strings.Contains(string(data), `"@type":"error"`))
	require.True(t, strings.Contains(string(data), `"code":400`))
}

func TestSendInvalidClientIDYieldsErrorResponse(t *testing.T) {
	mgr := client.NewManager()
	defer mgr.Finish()
	b := NewBridge(mgr)

	b.Send(client.ClientId(-1), []byte(`{"@type":"testSquareInt","value":2}`))

	data := b.Receive(recvTimeout)
	require.NotNil(t, data)
	require.True(t, strings.Contains(string(data), `"@type":"error"`))
}

func TestReceiveIncludesClientIDWhenNonzero(t *testing.T) {
	mgr := client.NewManager()
	defer mgr.Finish()
	b := NewBridge(mgr)

	id := mgr.CreateClientId()
	b.Send(id, []byte(`{"@type":"testSquareInt","value":4}`))

	data := b.Receive(recvTimeout)
	require.NotNil(t, data)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.EqualValues(t, int32(id), decoded["@client_id"])
}
