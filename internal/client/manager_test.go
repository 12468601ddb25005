package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/tlobject"
)

const recvTimeout = time.Second

func TestCreateClientIdAllocatesPositiveUniqueIds(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	seen := make(map[ClientId]bool)
	for i := 0; i < 50; i++ {
		id := m.CreateClientId()
		require.Greater(t, int32(id), int32(0))
		require.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
}

func TestSendFailsOnInvalidClientIDAndZeroRequestID(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	ctx := context.Background()

	err := m.Send(ctx, ClientId(0), RequestId(1), &tlobject.TestSquareInt{Value: 1})
	require.Error(t, err)

	err = m.Send(ctx, ClientId(999), RequestId(1), &tlobject.TestSquareInt{Value: 1})
	require.Error(t, err)

	id := m.CreateClientId()
	err = m.Send(ctx, id, RequestId(0), &tlobject.TestSquareInt{Value: 1})
	require.Error(t, err)
}

// TestClientCloseScenario is spec §8 S4.
func TestClientCloseScenario(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	ctx := context.Background()
	id := m.CreateClientId()

	err := m.Send(ctx, id, RequestId(7), &tlobject.GetTextEntities{Text: "hi"})
	require.NoError(t, err)

	resp, ok := m.Receive(recvTimeout)
	require.True(t, ok)
	require.Equal(t, RequestId(7), resp.RequestID)
	errObj, ok := resp.Object.(*tlobject.Error)
	require.True(t, ok)
	require.Equal(t, int32(400), errObj.Code)

	err = m.Send(ctx, id, RequestId(8), &tlobject.Close{})
	require.NoError(t, err)

	resp, ok = m.Receive(recvTimeout)
	require.True(t, ok)
	require.Equal(t, RequestId(8), resp.RequestID)
	require.IsType(t, &tlobject.Ok{}, resp.Object)

	resp, ok = m.Receive(recvTimeout)
	require.True(t, ok)
	require.Equal(t, RequestId(0), resp.RequestID)
	update, ok := resp.Object.(*tlobject.UpdateAuthorizationState)
	require.True(t, ok)
	require.IsType(t, &tlobject.AuthorizationStateClosed{}, update.AuthorizationState)
}

// TestMultiClientIsolation is spec §8 S5.
func TestMultiClientIsolation(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	ctx := context.Background()
	a := m.CreateClientId()
	b := m.CreateClientId()

	require.NoError(t, m.Send(ctx, a, RequestId(2), &tlobject.TestSquareInt{Value: 3}))
	require.NoError(t, m.Send(ctx, b, RequestId(2), &tlobject.TestSquareInt{Value: 3}))

	seen := make(map[ClientId]*Response)
	for i := 0; i < 2; i++ {
		resp, ok := m.Receive(recvTimeout)
		require.True(t, ok)
		seen[resp.ClientID] = resp
	}

	for _, id := range []ClientId{a, b} {
		resp := seen[id]
		require.NotNil(t, resp, "no response for client %d", id)
		require.Equal(t, RequestId(2), resp.RequestID)
		ti, ok := resp.Object.(*tlobject.TestInt)
		require.True(t, ok)
		require.Equal(t, int32(9), ti.Value)
	}
}

func TestSendAfterCloseGetsSyntheticError(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	ctx := context.Background()
	id := m.CreateClientId()

	require.NoError(t, m.Send(ctx, id, RequestId(1), &tlobject.Close{}))
	_, ok := m.Receive(recvTimeout)
	require.True(t, ok)
	_, ok = m.Receive(recvTimeout)
	require.True(t, ok)

	require.NoError(t, m.Send(ctx, id, RequestId(2), &tlobject.TestSquareInt{Value: 5}))
	resp, ok := m.Receive(recvTimeout)
	require.True(t, ok)
	errObj, ok := resp.Object.(*tlobject.Error)
	require.True(t, ok)
	require.GreaterOrEqual(t, errObj.Code, int32(400))
}

func TestReceiveTimesOutWithNoPendingResponses(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	start := time.Now()
	_, ok := m.Receive(50 * time.Millisecond)
	require.False(t, ok)
	require.WithinDuration(t, start.Add(50*time.Millisecond), time.Now(), 150*time.Millisecond)
}

// TestExecuteTextEntities is spec §8 S1.
func TestExecuteTextEntities(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	obj, err := m.Execute(&tlobject.GetTextEntities{Text: "@x /cmd"})
	require.NoError(t, err)

	entities, ok := obj.(*tlobject.TextEntities)
	require.True(t, ok)
	require.Len(t, entities.Entities, 2)

	require.Equal(t, "mention", entities.Entities[0].Type)
	require.Equal(t, int32(0), entities.Entities[0].Offset)
	require.Equal(t, int32(2), entities.Entities[0].Length)

	require.Equal(t, "botCommand", entities.Entities[1].Type)
	require.Equal(t, int32(3), entities.Entities[1].Offset)
	require.Equal(t, int32(4), entities.Entities[1].Length)
}

func TestExecuteRefusesNonSynchronousRequest(t *testing.T) {
	m := NewManager()
	defer m.Finish()

	_, err := m.Execute(&tlobject.Close{})
	require.Error(t, err)
}
