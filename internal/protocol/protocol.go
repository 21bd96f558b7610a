// Package protocol parses and validates the two client wire shapes: the
// handshake that opens a conversation and the chat messages that follow.
// Parsing is pure: raw bytes in, validated struct or typed error out.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mistchat/relay-backend/internal/models"
)

var validate = validator.New()

// Kind classifies a validation failure.
type Kind int

const (
	// KindMalformedPayload means the input was not a valid JSON object.
	KindMalformedPayload Kind = iota + 1
	// KindMissingField means a required field was absent or null.
	KindMissingField
	// KindInvalidDiscriminant means the "type" tag did not match the
	// expected value for this phase.
	KindInvalidDiscriminant
)

func (k Kind) String() string {
	switch k {
	case KindMalformedPayload:
		return "malformed payload"
	case KindMissingField:
		return "missing field"
	case KindInvalidDiscriminant:
		return "invalid type tag"
	default:
		return "unknown"
	}
}

// Error is a validation failure with its classification and, where known,
// the offending field.
type Error struct {
	Kind  Kind
	Field string
	cause error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.cause != nil:
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Field, e.cause)
	case e.Field != "":
		return fmt.Sprintf("%s %q", e.Kind, e.Field)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Required fields are pointers so that absent and null are both detectable.
type rawHandshake struct {
	Type     *string               `json:"type" validate:"required"`
	Sender   *models.ParticipantID `json:"sender" validate:"required"`
	Receiver *models.ParticipantID `json:"receiver" validate:"required"`
}

type rawMessage struct {
	Type     *string               `json:"type" validate:"required"`
	Sender   *models.ParticipantID `json:"sender" validate:"required"`
	Receiver *models.ParticipantID `json:"receiver" validate:"required"`
	Body     *string               `json:"body" validate:"required"`
	Token    *string               `json:"token" validate:"required"`
}

// ParseHandshake validates the mandatory first payload of a connection.
func ParseHandshake(raw []byte) (models.Handshake, error) {
	var rh rawHandshake
	if err := json.Unmarshal(raw, &rh); err != nil {
		return models.Handshake{}, &Error{Kind: KindMalformedPayload, cause: err}
	}
	// The tag is checked before the remaining fields so a misrouted payload
	// reads as a discriminant problem, not a missing-field one.
	if rh.Type != nil && *rh.Type != models.TypeInit {
		return models.Handshake{}, &Error{Kind: KindInvalidDiscriminant, Field: "type"}
	}
	if err := validate.Struct(rh); err != nil {
		return models.Handshake{}, &Error{Kind: KindMissingField, Field: firstField(err), cause: err}
	}
	return models.Handshake{Sender: *rh.Sender, Receiver: *rh.Receiver}, nil
}

// ParseMessage validates a chat payload from the relay phase.
func ParseMessage(raw []byte) (models.ChatMessage, error) {
	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return models.ChatMessage{}, &Error{Kind: KindMalformedPayload, cause: err}
	}
	if rm.Type != nil && *rm.Type != models.TypeMessage {
		return models.ChatMessage{}, &Error{Kind: KindInvalidDiscriminant, Field: "type"}
	}
	if err := validate.Struct(rm); err != nil {
		return models.ChatMessage{}, &Error{Kind: KindMissingField, Field: firstField(err), cause: err}
	}
	return models.ChatMessage{
		Sender:   *rm.Sender,
		Receiver: *rm.Receiver,
		Body:     *rm.Body,
		Token:    *rm.Token,
	}, nil
}

func firstField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field())
	}
	return ""
}
