package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mistchat/relay-backend/internal/models"
)

// fakeConn records delivered payloads. full simulates a connection whose
// send buffer cannot take more.
type fakeConn struct {
	received [][]byte
	full     bool
}

func (c *fakeConn) Send(payload []byte) bool {
	if c.full {
		return false
	}
	c.received = append(c.received, payload)
	return true
}

func TestRegistry_AttachFirstConnectionStarts(t *testing.T) {
	req := require.New(t)
	reg := New()
	key := models.NewConversationKey("1", "6")
	conn := &fakeConn{}

	// Given an empty registry
	req.Empty(reg.Sessions())

	// When the first connection attaches
	outcome := reg.Attach(key, conn)

	// Then a session exists containing only that connection
	req.Equal(Started, outcome)
	req.Equal(1, reg.Count(key))
	req.Len(reg.Sessions(), 1)
}

func TestRegistry_SecondAttachJoins(t *testing.T) {
	req := require.New(t)
	reg := New()
	key := models.NewConversationKey("1", "6")
	first, second := &fakeConn{}, &fakeConn{}

	req.Equal(Started, reg.Attach(key, first))

	// The reversed pair resolves to the same session.
	req.Equal(Joined, reg.Attach(models.NewConversationKey("6", "1"), second))
	req.Equal(2, reg.Count(key))
	req.Len(reg.Sessions(), 1)
}

func TestRegistry_DetachLastConnectionRemovesKey(t *testing.T) {
	req := require.New(t)
	reg := New()
	key := models.NewConversationKey("1", "6")
	first, second := &fakeConn{}, &fakeConn{}

	reg.Attach(key, first)
	reg.Attach(key, second)

	reg.Detach(key, first)
	req.Equal(1, reg.Count(key))
	req.Len(reg.Sessions(), 1)

	reg.Detach(key, second)
	req.Zero(reg.Count(key))
	req.Empty(reg.Sessions())

	// A later attach starts fresh.
	req.Equal(Started, reg.Attach(key, first))
}

func TestRegistry_DetachIsIdempotent(t *testing.T) {
	req := require.New(t)
	reg := New()
	key := models.NewConversationKey("1", "6")
	staying, leaving := &fakeConn{}, &fakeConn{}

	reg.Attach(key, staying)
	reg.Attach(key, leaving)

	reg.Detach(key, leaving)
	reg.Detach(key, leaving)
	reg.Detach(models.NewConversationKey("9", "9"), leaving)

	req.Equal(1, reg.Count(key))
}

func TestRegistry_BroadcastReachesAllIncludingSender(t *testing.T) {
	req := require.New(t)
	reg := New()
	key := models.NewConversationKey("1", "6")
	sender, peer := &fakeConn{}, &fakeConn{}

	reg.Attach(key, sender)
	reg.Attach(key, peer)

	delivered := reg.Broadcast(key, []byte("hello"))

	req.Equal(2, delivered)
	req.Equal([][]byte{[]byte("hello")}, sender.received)
	req.Equal([][]byte{[]byte("hello")}, peer.received)
}

func TestRegistry_BroadcastSkipsFullConnections(t *testing.T) {
	req := require.New(t)
	reg := New()
	key := models.NewConversationKey("1", "6")
	healthy := &fakeConn{}
	stalled := &fakeConn{full: true}

	reg.Attach(key, healthy)
	reg.Attach(key, stalled)

	delivered := reg.Broadcast(key, []byte("hello"))

	req.Equal(1, delivered)
	req.Len(healthy.received, 1)
	req.Empty(stalled.received)

	// A skipped delivery does not detach the connection.
	req.Equal(2, reg.Count(key))
}

func TestRegistry_BroadcastToUnknownKeyIsNoop(t *testing.T) {
	reg := New()
	require.Zero(t, reg.Broadcast(models.NewConversationKey("1", "6"), []byte("hello")))
}

func TestRegistry_ParticipantMayHoldSeveralConversations(t *testing.T) {
	req := require.New(t)
	reg := New()
	withBob := models.NewConversationKey("alice", "bob")
	withCarol := models.NewConversationKey("alice", "carol")
	conn := &fakeConn{}

	req.Equal(Started, reg.Attach(withBob, conn))
	req.Equal(Started, reg.Attach(withCarol, conn))
	req.Len(reg.Sessions(), 2)

	// Tearing one down leaves the other untouched.
	reg.Detach(withBob, conn)
	req.Zero(reg.Count(withBob))
	req.Equal(1, reg.Count(withCarol))
}
