package models

import "fmt"

// ConversationKey identifies the conversation between two participants.
// The pair is unordered: NewConversationKey sorts it into a canonical order,
// so (A,B) and (B,A) produce the same key. Comparable, usable as a map key.
type ConversationKey struct {
	A ParticipantID
	B ParticipantID
}

// NewConversationKey builds the canonical key for a participant pair.
func NewConversationKey(x, y ParticipantID) ConversationKey {
	if y < x {
		x, y = y, x
	}
	return ConversationKey{A: x, B: y}
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%s:%s", k.A, k.B)
}
