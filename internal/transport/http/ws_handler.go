package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"songquiz-service/internal/app"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/scoring"
)

type WSHandler struct {
	service     *app.QuizService
	defaultRule scoring.Rule
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewWSHandler serves quiz sessions. defaultRule applies when a connection
// does not name a scoring rule; the zero Rule means standard scoring.
func NewWSHandler(service *app.QuizService, defaultRule scoring.Rule, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultRule.Name == "" {
		defaultRule = scoring.Standard
	}
	return &WSHandler{
		service:     service,
		defaultRule: defaultRule,
		logger:      logger,
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

type startPayload struct {
	Difficulty string `json:"difficulty"`
}

type selectPayload struct {
	Option domain.Option `json:"option"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
	Playlist  string `json:"playlistId"`
	Scoring   string `json:"scoring"`
}

type audioPayload struct {
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsAudio forwards audio cues to the browser, which owns playback. Cues are
// dropped rather than block the session when the connection is backed up.
type wsAudio struct {
	send   chan<- outboundMessage[any]
	done   <-chan struct{}
	logger *slog.Logger
}

func (a *wsAudio) Play(_ context.Context, url string) error {
	a.push(audioPayload{Action: "play", URL: url})
	return nil
}

func (a *wsAudio) Stop(context.Context) error {
	a.push(audioPayload{Action: "stop"})
	return nil
}

func (a *wsAudio) push(p audioPayload) {
	select {
	case <-a.done:
		return
	default:
	}
	select {
	case a.send <- outboundMessage[any]{Type: "audio", Payload: p}:
	default:
		a.logger.Warn("audio cue dropped", "action", p.Action)
	}
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playlistID := r.URL.Query().Get("playlistId")
	if playlistID == "" {
		http.Error(w, "missing playlistId", http.StatusBadRequest)
		return
	}
	rule := h.defaultRule
	if raw := r.URL.Query().Get("scoring"); raw != "" {
		parsed, err := scoring.RuleByName(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rule = parsed
	}
	var err error
	var autoStart domain.Difficulty
	if raw := r.URL.Query().Get("difficulty"); raw != "" {
		if autoStart, err = domain.ParseDifficulty(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	session := h.service.Create(ctx, playlistID, rule, &wsAudio{send: send, done: closeSignals, logger: h.logger})
	logger := h.logger.With("session", session.ID())
	logger.Info("player connected", "playlist", playlistID, "scoring", rule.Name)

	updates, cancel, err := h.service.Subscribe(ctx, session.ID())
	if err != nil {
		h.service.Close(ctx, session.ID())
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{SessionID: session.ID(), Playlist: playlistID, Scoring: rule.Name}}

	// A single writer goroutine keeps gorilla's one-writer rule.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", "error", err)
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
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	fail := func(message string) {
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}
	start := func(d domain.Difficulty) {
		if err := h.service.Start(ctx, session.ID(), d); err != nil {
			fail(err.Error())
		}
	}

	if autoStart != "" {
		start(autoStart)
	}

read:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail("invalid start payload")
				continue
			}
			d, err := domain.ParseDifficulty(payload.Difficulty)
			if err != nil {
				fail(err.Error())
				continue
			}
			start(d)
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail("invalid select payload")
				continue
			}
			accepted, err := h.service.Select(ctx, session.ID(), payload.Option)
			if err != nil {
				fail(err.Error())
				continue
			}
			if !accepted {
				fail("selection ignored")
			}
		case "snapshot":
			snap, err := h.service.Snapshot(ctx, session.ID())
			if err != nil {
				fail(err.Error())
				continue
			}
			reply(outboundMessage[any]{Type: "state", Payload: snap})
		case "close":
			break read
		default:
			fail("unsupported message type")
		}
	}

	close(closeSignals)
	h.service.Close(context.Background(), session.ID())
	cancel()
	<-updatesDone
	close(send)
	<-writerDone
	logger.Info("player disconnected")
}
