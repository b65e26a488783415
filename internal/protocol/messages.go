package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeRecognizerEvent   MessageType = "recognizer_event"
	TypeClientControl     MessageType = "client_control"
	TypeRecognizerCommand MessageType = "recognizer_command"
	TypeTranscript        MessageType = "transcript"
	TypeDictationState    MessageType = "dictation_state"
	TypeWarning           MessageType = "warning"
	TypeErrorEvent        MessageType = "error_event"
)

// Recognizer callbacks relayed by the browser.
const (
	RecognizerStart  = "start"
	RecognizerResult = "result"
	RecognizerEnd    = "end"
	RecognizerError  = "error"
)

// Client control actions.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionSetText = "set_text"
	ActionClear   = "clear"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type RecognitionResult struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

// RecognizerEvent mirrors the SpeechRecognition onstart/onresult/onend/onerror
// callbacks.
type RecognizerEvent struct {
	Type        MessageType         `json:"type"`
	Event       string              `json:"event"`
	ResultIndex int                 `json:"result_index,omitempty"`
	Results     []RecognitionResult `json:"results,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
	Text   string      `json:"text,omitempty"`
}

type RecognizerCommand struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Action         string      `json:"action"`
	Lang           string      `json:"lang,omitempty"`
	Continuous     bool        `json:"continuous,omitempty"`
	InterimResults bool        `json:"interim_results,omitempty"`
}

type Transcript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Finalized string      `json:"finalized"`
	Interim   string      `json:"interim"`
}

type DictationState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
}

type Warning struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Message   string      `json:"message"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeRecognizerEvent:
		var msg RecognizerEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Event {
		case RecognizerStart, RecognizerEnd:
		case RecognizerResult:
			if msg.ResultIndex < 0 {
				return nil, errors.New("invalid recognizer_event: negative result_index")
			}
		case RecognizerError:
			if msg.Error == "" {
				return nil, errors.New("invalid recognizer_event: missing error code")
			}
		default:
			return nil, fmt.Errorf("invalid recognizer_event: unknown event %q", msg.Event)
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionStart, ActionStop, ActionSetText, ActionClear:
		default:
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
