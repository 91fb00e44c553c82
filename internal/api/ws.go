package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sprite-ai/capgate/internal/capsule"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev; restrict in production
	},
}

// WebSocket message types from client.
const (
	wsMsgGetCapsule = "get_capsule"
	wsMsgDecide     = "decide"
)

// WebSocket message types to client.
const (
	wsMsgCapsule  = "capsule"
	wsMsgRecorded = "recorded"
	wsMsgError    = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsGetCapsule is the payload for "get_capsule" messages.
type wsGetCapsule struct {
	SessionID string `json:"session_id"`
	CapsuleID string `json:"capsule_id"`
}

// wsDecide is the payload for "decide" messages. It carries a reviewer's
// verdict, which the server deposits as an approval token for the gate to
// consume on its next run.
type wsDecide struct {
	SessionID    string `json:"session_id"`
	CapsuleID    string `json:"capsule_id"`
	Approved     bool   `json:"approved"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	DenialReason string `json:"denial_reason,omitempty"`
}

// wsRecordedResponse confirms a deposited token.
type wsRecordedResponse struct {
	SessionID string `json:"session_id"`
	CapsuleID string `json:"capsule_id"`
	Approved  bool   `json:"approved"`
	TokenPath string `json:"token_path"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			sendWSError(conn, "invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgGetCapsule:
			s.handleWSGetCapsule(conn, msg.Data)
		case wsMsgDecide:
			s.handleWSDecide(conn, msg.Data)
		default:
			sendWSError(conn, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) handleWSGetCapsule(conn *websocket.Conn, data json.RawMessage) {
	var req wsGetCapsule
	if err := json.Unmarshal(data, &req); err != nil {
		sendWSError(conn, "invalid get_capsule data")
		return
	}
	if req.SessionID == "" || req.CapsuleID == "" {
		sendWSError(conn, "session_id and capsule_id are required")
		return
	}

	c, err := s.store.Load(req.SessionID, req.CapsuleID)
	if err != nil {
		if errors.Is(err, capsule.ErrNotFound) {
			sendWSError(conn, "capsule not found")
		} else {
			sendWSError(conn, "loading capsule: "+err.Error())
		}
		return
	}

	sendWSMessage(conn, wsMsgCapsule, capsuleResponse{
		SessionID: c.SessionID,
		Meta:      c.Meta,
		Diff:      c.Diff,
	})
}

func (s *Server) handleWSDecide(conn *websocket.Conn, data json.RawMessage) {
	var req wsDecide
	if err := json.Unmarshal(data, &req); err != nil {
		sendWSError(conn, "invalid decide data")
		return
	}
	if req.SessionID == "" || req.CapsuleID == "" {
		sendWSError(conn, "session_id and capsule_id are required")
		return
	}

	// The capsule must exist before a verdict can attach to it.
	if _, err := s.store.Load(req.SessionID, req.CapsuleID); err != nil {
		if errors.Is(err, capsule.ErrNotFound) {
			sendWSError(conn, "capsule not found")
		} else {
			sendWSError(conn, "loading capsule: "+err.Error())
		}
		return
	}

	tok := capsule.Token{
		CapsuleID:    req.CapsuleID,
		Approved:     req.Approved,
		ApprovedBy:   req.ApprovedBy,
		DenialReason: req.DenialReason,
	}
	if err := s.store.WriteToken(req.SessionID, req.CapsuleID, tok); err != nil {
		sendWSError(conn, "writing token: "+err.Error())
		return
	}

	sendWSMessage(conn, wsMsgRecorded, wsRecordedResponse{
		SessionID: req.SessionID,
		CapsuleID: req.CapsuleID,
		Approved:  req.Approved,
		TokenPath: s.store.TokenPath(req.SessionID, req.CapsuleID),
	})
}

func sendWSMessage(conn *websocket.Conn, msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("ws marshal: %v", err)
		return
	}
	msg := wsMessage{Type: msgType, Data: raw}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("ws write: %v", err)
	}
}

func sendWSError(conn *websocket.Conn, errMsg string) {
	sendWSMessage(conn, wsMsgError, map[string]string{"message": errMsg})
}
