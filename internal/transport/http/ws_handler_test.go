package http

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"songquiz-service/internal/app"
	"songquiz-service/internal/clock"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/infra/memory"
	"songquiz-service/internal/questions"
	"songquiz-service/internal/resolver"
	"songquiz-service/internal/scoring"
)

func TestWebSocketSessionFlow(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws?playlistId=top50&scoring=penalty")
	defer conn.Close()

	msg := readNext(conn, t, "session")
	var session sessionPayload
	_ = json.Unmarshal(msg.Payload, &session)
	if session.SessionID == "" || session.Scoring != "penalty" {
		t.Fatalf("unexpected session payload %s", msg.Payload)
	}
	if snap := readState(t, conn); snap.Phase != domain.PhaseNotStarted {
		t.Fatalf("expected not started, got %s", snap.Phase)
	}

	send(t, conn, "start", startPayload{Difficulty: "Hard"})

	var audioPlays int
	selected := 0
	for {
		msg := readNext(conn, t, "")
		switch msg.Type {
		case "audio":
			var cue audioPayload
			_ = json.Unmarshal(msg.Payload, &cue)
			if cue.Action == "play" {
				audioPlays++
			}
		case "state":
			var snap domain.Snapshot
			_ = json.Unmarshal(msg.Payload, &snap)
			if snap.Question != nil && snap.Question.Correct != nil {
				t.Fatalf("answer leaked to the client")
			}
			// Answer the first two questions, let the rest time out.
			if snap.Phase == domain.PhaseAwaitingAnswer && snap.Index == selected && selected < 2 {
				send(t, conn, "select", selectPayload{Option: snap.Question.Options[0]})
				selected++
			}
			if snap.Phase == domain.PhaseCompleted {
				if len(snap.Attempts) != questions.QuestionsPerSet {
					t.Fatalf("expected %d attempts, got %d", questions.QuestionsPerSet, len(snap.Attempts))
				}
				for _, a := range snap.Attempts[2:] {
					if a.Selected != nil {
						t.Fatalf("expected timeouts after the second question, got %+v", a)
					}
				}
				if audioPlays != questions.QuestionsPerSet {
					t.Fatalf("expected one play cue per question, got %d", audioPlays)
				}
				return
			}
		case "error":
			// A select racing the expiry is ignored; anything else is a failure.
			if string(msg.Payload) != `{"message":"selection ignored"}` {
				t.Fatalf("unexpected error %s", msg.Payload)
			}
		}
	}
}

func TestWebSocketUsesConfiguredDefaultRule(t *testing.T) {
	server, _ := newTestServerWithRule(t, scoring.Penalty)
	defer server.Close()

	conn := dial(t, server, "/ws?playlistId=top50")
	defer conn.Close()
	msg := readNext(conn, t, "session")
	var session sessionPayload
	_ = json.Unmarshal(msg.Payload, &session)
	if session.Scoring != scoring.Penalty.Name {
		t.Fatalf("expected configured penalty scoring, got %s", msg.Payload)
	}

	override := dial(t, server, "/ws?playlistId=top50&scoring=standard")
	defer override.Close()
	msg = readNext(override, t, "session")
	_ = json.Unmarshal(msg.Payload, &session)
	if session.Scoring != scoring.Standard.Name {
		t.Fatalf("expected query to override the default, got %s", msg.Payload)
	}
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	for _, path := range []string{"/ws", "/ws?playlistId=top50&scoring=golf", "/ws?playlistId=top50&difficulty=extreme"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, path), nil)
		if err == nil {
			t.Fatalf("%s: expected handshake failure", path)
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %+v", path, resp)
		}
	}
}

func TestWebSocketReportsContentLoadFailure(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws?playlistId=unknown&difficulty=easy")
	defer conn.Close()

	readNext(conn, t, "session")
	for {
		msg := readNext(conn, t, "")
		if msg.Type == "error" {
			var p errorPayload
			_ = json.Unmarshal(msg.Payload, &p)
			if p.Message == "" {
				t.Fatalf("expected error message")
			}
			return
		}
	}
}

func TestWebSocketCloseEndsSession(t *testing.T) {
	server, store := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws?playlistId=top50&difficulty=medium")
	defer conn.Close()
	readNext(conn, t, "session")
	if store.Len() != 1 {
		t.Fatalf("expected live session, got %d", store.Len())
	}

	send(t, conn, "close", struct{}{})
	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type rawMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.SessionStore) {
	t.Helper()
	return newTestServerWithRule(t, scoring.Standard)
}

func newTestServerWithRule(t *testing.T, rule scoring.Rule) (*httptest.Server, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	keys := memory.NewAnswerKeys(time.Minute)
	playlists := memory.NewPlaylistRepository(memory.NewStaticTrackLoader(map[string][]domain.Track{
		"top50": testTracks(24),
	}), time.Minute)
	generator := questions.NewGenerator(playlists,
		questions.WithRand(rand.New(rand.NewSource(1))),
		questions.WithAnswerKeys(keys),
	)
	service := app.NewQuizService(store, generator, resolver.NewLocal(), memory.NewScoreboard(), app.ServiceConfig{
		Timing:   app.Timing{Dwell: 20 * time.Millisecond},
		NewClock: func() clock.Clock { return clock.NewTickerWithInterval(10 * time.Millisecond) },
	})
	router := NewRouter(NewWSHandler(service, rule, nil), NewAPIHandler(service, generator, keys, "top50", nil), nil)
	return httptest.NewServer(router), store
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + server.URL[len("http"):] + path
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, path), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	if err := conn.WriteJSON(rawMessage{Type: typ, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) rawMessage {
	t.Helper()
	var msg rawMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg
}

func readState(t *testing.T, conn *websocket.Conn) domain.Snapshot {
	t.Helper()
	for {
		msg := readNext(conn, t, "")
		if msg.Type != "state" {
			continue
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		return snap
	}
}

func testTracks(n int) []domain.Track {
	tracks := make([]domain.Track, n)
	for i := range tracks {
		tracks[i] = domain.Track{
			Name:       fmt.Sprintf("Song %02d", i),
			Artist:     "Queen",
			AlbumCover: fmt.Sprintf("https://img.example.com/%d.jpg", i),
			PreviewURL: fmt.Sprintf("https://p.example.com/%d.mp3", i),
		}
	}
	return tracks
}
