package models

import (
	"encoding/json"
	"strconv"
)

// Discriminant tags carried in the "type" field of every wire payload.
const (
	TypeInit    = "init"
	TypeMessage = "message"
	TypeSuccess = "success"
	TypeError   = "error"
)

// ParticipantID identifies one conversation participant. Clients send it as
// either a JSON number or a JSON string; both decode to the same string form,
// and all-digit identifiers are re-encoded as numbers so clients get back what
// they sent.
type ParticipantID string

func (p *ParticipantID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = ParticipantID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = ParticipantID(n.String())
	return nil
}

func (p ParticipantID) MarshalJSON() ([]byte, error) {
	return marshalNumericOrString(string(p))
}

// MessageID is the identifier assigned by the persistence store. Encoded the
// same way as ParticipantID: numeric when all digits, string otherwise.
type MessageID string

func (m MessageID) MarshalJSON() ([]byte, error) {
	return marshalNumericOrString(string(m))
}

// marshalNumericOrString emits s as a bare JSON number only when s is the
// canonical decimal form; ParseInt alone also accepts "007" and "+5", which
// are not valid JSON number literals.
func marshalNumericOrString(s string) ([]byte, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// Handshake is the validated first payload on a new connection.
// It carries no credential; only chat messages are authenticated.
type Handshake struct {
	Sender   ParticipantID
	Receiver ParticipantID
}

// ChatMessage is a validated chat payload from the relay phase. Token is a
// transport-only credential, forwarded verbatim to the store and never
// included in any broadcast.
type ChatMessage struct {
	Sender   ParticipantID
	Receiver ParticipantID
	Body     string
	Token    string
}

// Broadcast is the payload fanned out to every connection in a session after
// a successful persist. Timestamp is the server receipt time in seconds since
// epoch; ID is assigned by the store.
type Broadcast struct {
	Type      string        `json:"type"`
	Sender    ParticipantID `json:"sender"`
	Receiver  ParticipantID `json:"receiver"`
	Body      string        `json:"body"`
	Timestamp int64         `json:"timestamp"`
	ID        MessageID     `json:"id,omitempty"`
}

// Event is a server-to-client status notification.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
