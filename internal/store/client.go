// Package store talks to the external message store, the HTTP collaborator
// that durably records every relayed message.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mistchat/relay-backend/internal/models"
)

// Saver persists one chat message and returns the identifier the store
// assigned to it.
type Saver interface {
	Save(ctx context.Context, msg models.ChatMessage, timestamp int64) (models.MessageID, error)
}

// PersistError reports that the store rejected or failed to accept a
// message. StatusCode is zero for transport failures.
type PersistError struct {
	StatusCode int
	Detail     string
}

func (e *PersistError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("message store unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("message store returned %d: %s", e.StatusCode, e.Detail)
}

// Client posts messages to the store endpoint. The client token travels in
// the Authorization header only, never in the request body. The field the
// assigned identifier arrives under is configurable because the store's
// response shape is a deployment contract, not a fixed one.
type Client struct {
	url     string
	idField string
	http    *http.Client
}

func NewClient(url, idField string, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		idField: idField,
		http:    &http.Client{Timeout: timeout},
	}
}

type saveRequest struct {
	Sender    models.ParticipantID `json:"sender"`
	Receiver  models.ParticipantID `json:"receiver"`
	Body      string               `json:"body"`
	Timestamp int64                `json:"timestamp"`
}

// Save posts the message and interprets any 2xx status as acceptance.
// A 2xx response whose body carries no readable identifier still counts as
// accepted; the message just broadcasts without an id.
func (c *Client) Save(ctx context.Context, msg models.ChatMessage, timestamp int64) (models.MessageID, error) {
	payload, err := json.Marshal(saveRequest{
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Body:      msg.Body,
		Timestamp: timestamp,
	})
	if err != nil {
		return "", &PersistError{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", &PersistError{Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+msg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &PersistError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &PersistError{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	return c.extractID(resp.Body), nil
}

func (c *Client) extractID(body io.Reader) models.MessageID {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return ""
	}
	switch v := fields[c.idField].(type) {
	case json.Number:
		return models.MessageID(v.String())
	case string:
		return models.MessageID(v)
	default:
		return ""
	}
}
