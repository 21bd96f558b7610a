// Package registry maintains the in-memory mapping from a conversation key
// to the set of live connections attached to that conversation.
package registry

import (
	"sync"

	"github.com/mistchat/relay-backend/internal/models"
)

// Conn is the send side of one attached connection. Send must not block:
// it reports false when the payload could not be queued.
type Conn interface {
	Send(payload []byte) bool
}

// Outcome reports whether an attach created a session or joined one.
type Outcome int

const (
	Started Outcome = iota
	Joined
)

func (o Outcome) String() string {
	if o == Started {
		return "started"
	}
	return "joined"
}

type session map[Conn]struct{}

// Registry is the process-wide conversation table. An entry exists if and
// only if its connection set is non-empty. Constructed once at startup and
// passed to every connection handler; all methods are safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[models.ConversationKey]session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[models.ConversationKey]session),
	}
}

// Attach adds conn to the session for key, creating the session if this is
// the first connection for that key.
func (r *Registry) Attach(key models.ConversationKey, conn Conn) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.sessions[key]
	if !ok {
		members = make(session)
		r.sessions[key] = members
	}
	members[conn] = struct{}{}
	if ok {
		return Joined
	}
	return Started
}

// Detach removes conn from the session for key and drops the key entirely
// once no connections remain. Detaching a connection that is not attached is
// a no-op, so double cleanup on racing failure paths is harmless.
func (r *Registry) Detach(key models.ConversationKey, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.sessions[key]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(r.sessions, key)
	}
}

// Broadcast queues payload on every connection attached to key, including
// the sender's own. Delivery goes to a snapshot of the member set taken
// under the read lock; a connection whose send buffer is full is skipped
// rather than waited on. Returns the number of connections that accepted
// the payload.
func (r *Registry) Broadcast(key models.ConversationKey, payload []byte) int {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.sessions[key]))
	for conn := range r.sessions[key] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range members {
		if conn.Send(payload) {
			delivered++
		}
	}
	return delivered
}

// Count reports how many connections are attached to key.
func (r *Registry) Count(key models.ConversationKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[key])
}

// Sessions returns a snapshot of every live conversation and its
// connection count.
func (r *Registry) Sessions() map[models.ConversationKey]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.ConversationKey]int, len(r.sessions))
	for key, members := range r.sessions {
		out[key] = len(members)
	}
	return out
}
