package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"video-session-service/internal/app"
	"video-session-service/internal/domain"
)

// WSHandler speaks the session wire protocol. The client owns the playback
// clock: its timeupdate events arrive as "tick" frames and its ended event
// as "finish". Playback control flows the other way as "pause"/"resume"
// frames, sent when a moment activates and when it is resolved.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type tickPayload struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
}

type answerPayload struct {
	MomentID string `json:"momentId"`
	Answer   string `json:"answer"`
}

type skipPayload struct {
	MomentID string `json:"momentId"`
	// Auto marks the client's answer-timeout skip, which is accepted even
	// when explicit skipping is disabled.
	Auto bool `json:"auto"`
}

type finishPayload struct {
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	TotalPauses      int     `json:"totalPauses"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ServeWS upgrades HTTP requests to websockets and drives one session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	userID := r.URL.Query().Get("userId")
	videoID := r.URL.Query().Get("videoId")
	if tenantID == "" || userID == "" || videoID == "" {
		http.Error(w, "missing tenantId, userId, or videoId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	started, err := h.service.Start(r.Context(), tenantID, userID, videoID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	sessionID := started.SessionID

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "progress", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: started}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if terminal := h.handleFrame(r, sessionID, inbound, send); terminal {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handleFrame dispatches one inbound frame. It returns true when the flow
// should end (terminal error or the session finished).
func (h *WSHandler) handleFrame(r *http.Request, sessionID string, inbound inboundMessage, send chan<- outboundMessage[any]) bool {
	switch inbound.Type {
	case "tick":
		var payload tickPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- invalidPayload("tick")
			return false
		}
		moment, err := h.service.Tick(r.Context(), sessionID, payload.CurrentTime, payload.Duration)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
			return errors.Is(err, domain.ErrInvalidSession)
		}
		if moment != nil {
			send <- outboundMessage[any]{Type: "pause", Payload: struct{}{}}
			send <- outboundMessage[any]{Type: "moment", Payload: moment}
		}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- invalidPayload("answer")
			return false
		}
		result, err := h.service.SubmitAnswer(r.Context(), sessionID, payload.MomentID, payload.Answer)
		if err != nil {
			// An already-answered moment is a retry echo; playback may resume.
			if errors.Is(err, domain.ErrMomentAlreadyAnswered) {
				send <- outboundMessage[any]{Type: "resume", Payload: struct{}{}}
				return false
			}
			send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
			return errors.Is(err, domain.ErrInvalidSession)
		}
		send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		send <- outboundMessage[any]{Type: "resume", Payload: struct{}{}}

	case "skip":
		var payload skipPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- invalidPayload("skip")
			return false
		}
		_, err := h.service.SkipMoment(r.Context(), sessionID, payload.MomentID, payload.Auto)
		if err != nil && !errors.Is(err, domain.ErrMomentAlreadyAnswered) {
			send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
			return errors.Is(err, domain.ErrInvalidSession)
		}
		send <- outboundMessage[any]{Type: "resume", Payload: struct{}{}}

	case "finish":
		var payload finishPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- invalidPayload("finish")
			return false
		}
		result, err := h.service.Finalize(r.Context(), sessionID, payload.WatchTimeSeconds, payload.TotalPauses)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
			return errors.Is(err, domain.ErrInvalidSession)
		}
		send <- outboundMessage[any]{Type: "result", Payload: result}
		return true

	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
			Code: "unsupported", Message: "unsupported message type", Recoverable: true,
		}}
	}
	return false
}

func invalidPayload(kind string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Code: "bad_payload", Message: "invalid " + kind + " payload", Recoverable: true,
	}}
}

// toErrorPayload maps the domain taxonomy onto wire codes. Recoverable
// conditions leave the flow (and any active moment) intact; the rest end it.
func toErrorPayload(err error) errorPayload {
	switch {
	case errors.Is(err, domain.ErrInvalidSession):
		return errorPayload{Code: "invalid_session", Message: err.Error()}
	case errors.Is(err, domain.ErrQuotaExceeded):
		return errorPayload{Code: "quota_exceeded", Message: err.Error()}
	case errors.Is(err, domain.ErrCatalogNotFound):
		return errorPayload{Code: "catalog_not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrMomentAlreadyAnswered):
		return errorPayload{Code: "moment_already_answered", Message: err.Error(), Recoverable: true}
	case errors.Is(err, domain.ErrSessionNotActive):
		return errorPayload{Code: "session_not_active", Message: err.Error(), Recoverable: true}
	case errors.Is(err, domain.ErrCatalogMismatch):
		return errorPayload{Code: "catalog_mismatch", Message: err.Error(), Recoverable: true}
	case errors.Is(err, domain.ErrNoActiveMoment):
		return errorPayload{Code: "no_active_moment", Message: err.Error(), Recoverable: true}
	case errors.Is(err, domain.ErrSkipDisabled):
		return errorPayload{Code: "skip_disabled", Message: err.Error(), Recoverable: true}
	}
	return errorPayload{Code: "internal", Message: err.Error()}
}
