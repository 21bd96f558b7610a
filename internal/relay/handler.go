// Package relay runs the per-connection state machine: one handshake that
// starts or joins a conversation, then the message loop that validates,
// persists, and fans out each chat payload.
package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/mistchat/relay-backend/internal/models"
	"github.com/mistchat/relay-backend/internal/protocol"
	"github.com/mistchat/relay-backend/internal/registry"
	"github.com/mistchat/relay-backend/internal/store"
	"github.com/mistchat/relay-backend/internal/ws"
)

// Handler holds the dependencies for the websocket and conversation routes.
type Handler struct {
	Registry   *registry.Registry
	Store      store.Saver
	SendBuffer int
	Upgrader   websocket.Upgrader

	// Now stamps the receipt time on each accepted message, in seconds
	// since epoch. Overridable in tests.
	Now func() int64
}

func NewHandler(reg *registry.Registry, saver store.Saver, sendBuffer int) *Handler {
	return &Handler{
		Registry:   reg,
		Store:      saver,
		SendBuffer: sendBuffer,
		Upgrader: websocket.Upgrader{
			// Browser origin policy is enforced by the proxy in front of
			// this service.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		Now: func() int64 { return time.Now().Unix() },
	}
}

// ServeWS upgrades the connection and runs it through handshake and relay.
// Whatever way the connection ends, the client detaches from its session
// exactly once.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(conn, h.SendBuffer)
	go client.WritePump()
	defer client.Close()

	// Handshake phase: exactly one frame decides the conversation.
	raw, err := client.ReadMessage()
	if err != nil {
		return
	}
	hs, err := protocol.ParseHandshake(raw)
	if err != nil {
		client.SendEvent(models.TypeError, fmt.Sprintf("Could not instantiate conversation: %v", err))
		return
	}

	key := models.NewConversationKey(hs.Sender, hs.Receiver)
	outcome := h.Registry.Attach(key, client)
	defer h.Registry.Detach(key, client)

	switch outcome {
	case registry.Started:
		client.SendEvent(models.TypeSuccess, fmt.Sprintf("Beginning conversation between %s and %s", key.A, key.B))
	case registry.Joined:
		client.SendEvent(models.TypeSuccess, fmt.Sprintf("Joining conversation between %s and %s", key.A, key.B))
	}
	log.Printf("[relay] client %s %s conversation %s", client.ID, outcome, key)

	h.relay(r, client, key)
}

// relay is the active phase. Validation and persist failures are reported
// to the sender only and never end the loop; only a dead connection does.
func (h *Handler) relay(r *http.Request, client *ws.Client, key models.ConversationKey) {
	for {
		raw, err := client.ReadMessage()
		if err != nil {
			return
		}

		msg, perr := protocol.ParseMessage(raw)
		if perr != nil {
			client.SendEvent(models.TypeError, fmt.Sprintf("Improperly formatted message: %v", perr))
			continue
		}

		timestamp := h.Now()
		id, err := h.Store.Save(r.Context(), msg, timestamp)
		if err != nil {
			client.SendEvent(models.TypeError, fmt.Sprintf("Could not persist message: %v", err))
			continue
		}

		// The token stays out of the broadcast: it is a credential for the
		// store, not conversation content.
		payload, err := json.Marshal(models.Broadcast{
			Type:      models.TypeMessage,
			Sender:    msg.Sender,
			Receiver:  msg.Receiver,
			Body:      msg.Body,
			Timestamp: timestamp,
			ID:        id,
		})
		if err != nil {
			client.SendEvent(models.TypeError, fmt.Sprintf("Could not encode message: %v", err))
			continue
		}
		h.Registry.Broadcast(key, payload)
	}
}

type conversationSummary struct {
	Participants [2]models.ParticipantID `json:"participants"`
	Connections  int                     `json:"connections"`
}

// ListConversations reports every live conversation and how many
// connections are attached to it.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	summaries := lo.MapToSlice(h.Registry.Sessions(), func(key models.ConversationKey, n int) conversationSummary {
		return conversationSummary{
			Participants: [2]models.ParticipantID{key.A, key.B},
			Connections:  n,
		}
	})
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Participants[0] != summaries[j].Participants[0] {
			return summaries[i].Participants[0] < summaries[j].Participants[0]
		}
		return summaries[i].Participants[1] < summaries[j].Participants[1]
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}
