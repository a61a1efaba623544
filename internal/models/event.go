package models

// EventType identifies one of the messages pushed to a caller while a question is answered
type EventType string

const (
	EventReasoning EventType = "reasoning" // Incremental reasoning text scraped from the upstream UI
	EventAnswer    EventType = "answer"    // Extracted structure encoding, or NoResultAnswer
	EventStructure EventType = "structure" // Encoding plus a renderable HTML fragment
	EventError     EventType = "error"     // Human-readable failure description
	EventDone      EventType = "done"      // Always the final event of a stream
)

// NoResultAnswer is sent as the answer content when no structure marker could be extracted
const NoResultAnswer = "No result"

// Event is a single push message. Only the fields relevant to Type are populated.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Smiles  string    `json:"smiles,omitempty"`
	HTML    string    `json:"html,omitempty"`
	Message string    `json:"message,omitempty"`
}

func NewReasoningEvent(delta string) Event {
	return Event{Type: EventReasoning, Content: delta}
}

func NewAnswerEvent(content string) Event {
	return Event{Type: EventAnswer, Content: content}
}

func NewStructureEvent(smiles, html string) Event {
	return Event{Type: EventStructure, Smiles: smiles, HTML: html}
}

func NewErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

func NewDoneEvent() Event {
	return Event{Type: EventDone}
}

// AskRequest is the inbound question payload shared by the SSE and WebSocket transports
type AskRequest struct {
	Question string `json:"question" validate:"required,notblank"`
}
