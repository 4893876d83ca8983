package websocket

import (
	"github.com/stemsi/proctor-backend/internal/model"
	"github.com/stemsi/proctor-backend/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

// Action names a client message. Copy, paste and copy/paste shortcuts are
// reported after the browser has already cancelled them locally: the ack
// arrives a round trip later, when preventDefault is no longer possible.
type Action string

const (
	ActionVisibility Action = "visibility"
	ActionCopy       Action = "copy"
	ActionPaste      Action = "paste"
	ActionKeydown    Action = "keydown"
	ActionAnswer     Action = "answer"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// VisibilityRequest reports a page visibility change.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// KeydownRequest reports a key press with its modifier state.
type KeydownRequest struct {
	Action Action `json:"action"`
	Key    string `json:"key"`
	Ctrl   bool   `json:"ctrl"`
	Meta   bool   `json:"meta"`
}

// AnswerRequest selects an option for the current question.
type AnswerRequest struct {
	Action Action `json:"action"`
	Choice string `json:"choice"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState           Event = "state"
	EventQuestion        Event = "question"
	EventGraded          Event = "graded"
	EventNotice          Event = "notice"
	EventNoticeDismissed Event = "notice_dismissed"
	EventError           Event = "error"
	EventRedirect        Event = "redirect"
	EventAck             Event = "ack"
	EventPong            Event = "pong"
)

// StateResponse carries a full session snapshot plus the rendered clock.
type StateResponse struct {
	Event Event            `json:"event"`
	State proctor.Snapshot `json:"state"`
	Clock string           `json:"clock"`
}

type QuestionResponse struct {
	Event    Event                        `json:"event"`
	Question model.QuestionForParticipant `json:"question"`
}

type GradedResponse struct {
	Event Event         `json:"event"`
	Grade proctor.Grade `json:"grade"`
}

type NoticeResponse struct {
	Event  Event          `json:"event"`
	Notice proctor.Notice `json:"notice"`
}

type NoticeDismissedResponse struct {
	Event Event `json:"event"`
	ID    int   `json:"id"`
}

type RedirectResponse struct {
	Event    Event            `json:"event"`
	Redirect proctor.Redirect `json:"redirect"`
}

// AckResponse answers a relayed environment signal. Suppress confirms that
// the signal counted as a clipboard attempt the client must block; it does
// not cancel anything by itself, the client suppresses on its own side.
type AckResponse struct {
	Event    Event  `json:"event"`
	Action   Action `json:"action"`
	Suppress bool   `json:"suppress"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
