package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"video-session-service/internal/app"
	"video-session-service/internal/domain"
	"video-session-service/internal/infra/memory"
)

func newTestHandler(t *testing.T, opts app.EngineOptions) *httptest.Server {
	t.Helper()
	store := memory.NewSessionStore()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleCatalog()), time.Minute)
	service := app.NewSessionService(store, catalogs, opts)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWebSocketSessionFlow(t *testing.T) {
	server := newTestHandler(t, app.EngineOptions{})

	u := "ws" + server.URL[len("http"):] + "/ws?tenantId=t1&userId=u1&videoId=video-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := waitFor(conn, t, "started")
	if sid, _ := payload["sessionId"].(string); sid == "" {
		t.Fatalf("expected session id in started payload, got %v", payload)
	}

	// Drive the playback clock into m1's window.
	writeFrame(conn, t, "tick", map[string]any{"currentTime": 12.0, "duration": 300.0})
	waitFor(conn, t, "pause")
	_, moment := waitFor(conn, t, "moment")
	if moment["id"] != "m1" {
		t.Fatalf("expected m1 to activate, got %v", moment)
	}
	if _, leaked := moment["correctAnswer"]; leaked {
		t.Fatalf("moment frame must not carry the expected answer")
	}

	// Answer it; substring rule scores this correct.
	writeFrame(conn, t, "answer", map[string]any{"momentId": "m1", "answer": "la capital es Madrid"})
	_, result := waitFor(conn, t, "answerResult")
	if result["isCorrect"] != true {
		t.Fatalf("expected correct answer, got %v", result)
	}
	waitFor(conn, t, "resume")

	// End of video.
	writeFrame(conn, t, "finish", map[string]any{"watchTimeSeconds": 300.0, "totalPauses": 1})
	_, final := waitFor(conn, t, "result")
	if final["finalScore"] != float64(100) || final["passed"] != true {
		t.Fatalf("expected perfect result, got %v", final)
	}
}

func TestWebSocketDuplicateAnswerResumes(t *testing.T) {
	server := newTestHandler(t, app.EngineOptions{})

	u := "ws" + server.URL[len("http"):] + "/ws?tenantId=t1&userId=u1&videoId=video-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(conn, t, "started")

	writeFrame(conn, t, "tick", map[string]any{"currentTime": 12.0, "duration": 300.0})
	waitFor(conn, t, "moment")
	writeFrame(conn, t, "answer", map[string]any{"momentId": "m1", "answer": "Madrid"})
	waitFor(conn, t, "answerResult")

	// A network-layer retry of the same answer is ignored: the client just
	// gets told to resume, never an error.
	writeFrame(conn, t, "answer", map[string]any{"momentId": "m1", "answer": "Madrid"})
	typ, _ := waitFor(conn, t, "resume")
	if typ != "resume" {
		t.Fatalf("expected resume after duplicate answer, got %s", typ)
	}
}

func TestWebSocketMissingParams(t *testing.T) {
	server := newTestHandler(t, app.EngineOptions{})

	resp, err := http.Get(server.URL + "/ws?tenantId=t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func writeFrame(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// waitFor reads frames until one of the expected type arrives, skipping
// interleaved progress pushes.
func waitFor(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 10; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Type, msg.Payload
		}
		if msg.Type == "error" {
			t.Fatalf("unexpected error frame waiting for %s: %v", expect, msg.Payload)
		}
	}
	t.Fatalf("never saw %s frame", expect)
	return "", nil
}

func sampleCatalog() map[string][]domain.KeyMoment {
	return map[string][]domain.KeyMoment{
		"video-1": {
			{ID: "m1", TimestampSeconds: 12, Question: "Capital of Spain?", Kind: domain.ShortAnswer, CorrectAnswer: "Madrid"},
		},
	}
}
