package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/middleware"
	"github.com/stemsi/proctor-backend/internal/model"
	"github.com/stemsi/proctor-backend/internal/proctor"
	"github.com/stemsi/proctor-backend/internal/response"
	"github.com/stemsi/proctor-backend/internal/service"
	"github.com/stemsi/proctor-backend/internal/validator"
	ws "github.com/stemsi/proctor-backend/internal/websocket"
)

const (
	// closeGrace is how long the reader waits for the client's close reply
	// after the server ends the session.
	closeGrace    = 5 * time.Second
	saveStateWait = 2 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// QuizStarter mounts proctored sessions.
type QuizStarter interface {
	StartSession(ctx context.Context, participant, topic string, sink proctor.Sink) (*proctor.Controller, error)
}

// StateSaver stores the latest snapshot of a running session for the admin views.
type StateSaver interface {
	SaveState(ctx context.Context, sessionID string, state []byte, ttl time.Duration) error
}

// WSHandler streams proctored quiz sessions over WebSocket.
type WSHandler struct {
	quiz     QuizStarter
	states   StateSaver
	stateTTL time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
	active   atomic.Int64

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWSHandler creates a new WSHandler. states may be nil.
func NewWSHandler(quiz QuizStarter, states StateSaver, stateTTL time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		quiz:     quiz,
		states:   states,
		stateTTL: stateTTL,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// ActiveStreams returns the number of sessions currently connected.
func (h *WSHandler) ActiveStreams() int64 {
	return h.active.Load()
}

// CloseAll drops every connected stream. Each session ends as aborted and
// its outcome is still recorded. Used on server shutdown, since hijacked
// connections outlive http.Server.Shutdown.
func (h *WSHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
}

func (h *WSHandler) track(conn *websocket.Conn) func() {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.active.Add(1)

	return func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		h.active.Add(-1)
	}
}

// QuizStream godoc
// WS /ws/v1/quiz/stream?token=...&topic=...
// Mounts a proctored session and relays browser signals into it.
func (h *WSHandler) QuizStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartQuizRequest
	if fields := validator.BindQuery(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	outbox := ws.NewOutbox()
	ctrl, err := h.quiz.StartSession(c.Request.Context(), claims.Subject, req.Topic, streamSink{out: outbox})
	if err != nil {
		code := response.ErrInternal
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			code = response.ErrQuizSessionActive
		} else {
			h.log.Error().Err(err).Str("participant", claims.Subject).Msg("Failed to start quiz session")
		}
		ws.WriteError(conn, response.GetMessage(code))
		ws.WriteClose(conn, string(code))
		return
	}

	defer h.track(conn)()

	wsLog := h.log.With().
		Str("participant", claims.Subject).
		Str("session_id", ctrl.ID().String()).
		Logger()
	wsLog.Info().Str("topic", req.Topic).Msg("Participant connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, outbox, ctrl, wsLog)
	}()

	h.readLoop(conn, outbox, ctrl, wsLog)

	ctrl.Close()
	<-writerDone
	wsLog.Info().Str("reason", string(ctrl.Snapshot().Reason)).Msg("Participant disconnected")
}

// readLoop relays client actions until the connection drops.
func (h *WSHandler) readLoop(conn *websocket.Conn, outbox *ws.Outbox, ctrl *proctor.Controller, wsLog zerolog.Logger) {
	for {
		action, raw, err := ws.ReadRequest(conn)
		if err != nil {
			if errors.Is(err, ws.ErrMalformedMessage) {
				outbox.Push(ws.ErrorResponse{Event: ws.EventError, Error: "malformed message"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		h.dispatch(action, raw, outbox, ctrl, wsLog)
	}
}

func (h *WSHandler) dispatch(action ws.Action, raw []byte, outbox *ws.Outbox, ctrl *proctor.Controller, wsLog zerolog.Logger) {
	switch action {
	case ws.ActionVisibility:
		var req ws.VisibilityRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			outbox.Push(ws.ErrorResponse{Event: ws.EventError, Error: "invalid visibility payload"})
			return
		}
		h.relay(outbox, ctrl, action, proctor.Signal{Kind: proctor.SignalVisibility, Hidden: req.Hidden})

	case ws.ActionCopy:
		h.relay(outbox, ctrl, action, proctor.Signal{Kind: proctor.SignalCopy})

	case ws.ActionPaste:
		h.relay(outbox, ctrl, action, proctor.Signal{Kind: proctor.SignalPaste})

	case ws.ActionKeydown:
		var req ws.KeydownRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			outbox.Push(ws.ErrorResponse{Event: ws.EventError, Error: "invalid keydown payload"})
			return
		}
		h.relay(outbox, ctrl, action, proctor.Signal{
			Kind: proctor.SignalKeyDown,
			Key:  req.Key,
			Ctrl: req.Ctrl,
			Meta: req.Meta,
		})

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			outbox.Push(ws.ErrorResponse{Event: ws.EventError, Error: "invalid answer payload"})
			return
		}
		if _, err := ctrl.Submit(req.Choice); err != nil {
			outbox.Push(ws.ErrorResponse{Event: ws.EventError, Error: answerError(err)})
		}

	case ws.ActionPing:
		outbox.Push(ws.PongResponse{Event: ws.EventPong})

	default:
		wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
		outbox.Push(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(action)})
	}
}

// relay feeds a browser signal to the controller and acknowledges it with
// the suppress decision. The client has already blocked the event; the ack
// only confirms the verdict.
func (h *WSHandler) relay(outbox *ws.Outbox, ctrl *proctor.Controller, action ws.Action, sig proctor.Signal) {
	verdict := ctrl.HandleSignal(sig)
	outbox.Push(ws.AckResponse{Event: ws.EventAck, Action: action, Suppress: verdict.Suppress})
}

func answerError(err error) string {
	switch {
	case errors.Is(err, proctor.ErrUnknownOption):
		return "choice is not one of the options"
	case errors.Is(err, proctor.ErrNotAccepting):
		return "not accepting answers right now"
	case errors.Is(err, proctor.ErrSessionEnded):
		return "session has ended"
	default:
		return "answer rejected"
	}
}

// writeLoop is the only goroutine writing to conn. It drains the outbox
// until the session ends, then sends a close frame.
func (h *WSHandler) writeLoop(conn *websocket.Conn, outbox *ws.Outbox, ctrl *proctor.Controller, wsLog zerolog.Logger) {
	for {
		select {
		case <-outbox.Ready():
			if err := h.flush(conn, outbox, ctrl); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				conn.Close()
				return
			}
		case <-ctrl.Done():
			if err := h.flush(conn, outbox, ctrl); err != nil {
				conn.Close()
				return
			}
			ws.WriteClose(conn, string(ctrl.Snapshot().Reason))
			conn.SetReadDeadline(time.Now().Add(closeGrace))
			return
		}
	}
}

func (h *WSHandler) flush(conn *websocket.Conn, outbox *ws.Outbox, ctrl *proctor.Controller) error {
	for _, msg := range outbox.Drain() {
		if err := ws.WriteTyped(conn, msg); err != nil {
			return err
		}
		if st, ok := msg.(ws.StateResponse); ok {
			h.saveState(ctrl, st.State)
		}
	}
	return nil
}

func (h *WSHandler) saveState(ctrl *proctor.Controller, snap proctor.Snapshot) {
	if h.states == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctrl.Context()), saveStateWait)
	defer cancel()
	if err := h.states.SaveState(ctx, snap.SessionID.String(), data, h.stateTTL); err != nil {
		h.log.Warn().Err(err).Str("session_id", snap.SessionID.String()).Msg("Failed to save session state")
	}
}

// streamSink turns controller effects into outbound WebSocket events.
type streamSink struct {
	out *ws.Outbox
}

func (s streamSink) State(snap proctor.Snapshot) {
	s.out.Push(ws.StateResponse{Event: ws.EventState, State: snap, Clock: proctor.FormatClock(snap.TimeLeft)})
}

func (s streamSink) Question(q model.QuestionForParticipant) {
	s.out.Push(ws.QuestionResponse{Event: ws.EventQuestion, Question: q})
}

func (s streamSink) Graded(g proctor.Grade) {
	s.out.Push(ws.GradedResponse{Event: ws.EventGraded, Grade: g})
}

func (s streamSink) Notice(n proctor.Notice) {
	s.out.Push(ws.NoticeResponse{Event: ws.EventNotice, Notice: n})
}

func (s streamSink) NoticeDismissed(id int) {
	s.out.Push(ws.NoticeDismissedResponse{Event: ws.EventNoticeDismissed, ID: id})
}

func (s streamSink) Failed(message string) {
	s.out.Push(ws.ErrorResponse{Event: ws.EventError, Error: message})
}

func (s streamSink) Redirect(r proctor.Redirect) {
	s.out.Push(ws.RedirectResponse{Event: ws.EventRedirect, Redirect: r})
}
