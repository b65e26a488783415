// Package dictation drives a browser speech recognizer through an explicit
// capture state machine with automatic restart.
package dictation

import (
	"time"

	"github.com/ent0n29/katibim/internal/reliability"
)

type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateListening  State = "listening"
	StateStopping   State = "stopping"
	StateRestarting State = "restarting"
	StateDenied     State = "denied"
)

type EventKind string

const (
	EventStartRequested    EventKind = "start_requested"
	EventStopRequested     EventKind = "stop_requested"
	EventRecognizerStarted EventKind = "recognizer_started"
	EventRecognizerResult  EventKind = "recognizer_result"
	EventRecognizerEnded   EventKind = "recognizer_ended"
	EventRecognizerError   EventKind = "recognizer_error"
	EventRestartDue        EventKind = "restart_due"
	EventTeardown          EventKind = "teardown"
	EventSetText           EventKind = "set_text"
	EventClear             EventKind = "clear"
)

// Event is one input to the machine.
type Event struct {
	Kind        EventKind
	ResultIndex int
	Results     []Result
	ErrorCode   string
	Text        string

	ack chan struct{}
}

type CommandKind string

const (
	CommandStartRecognizer   CommandKind = "start_recognizer"
	CommandStopRecognizer    CommandKind = "stop_recognizer"
	CommandScheduleRestart   CommandKind = "schedule_restart"
	CommandPublishTranscript CommandKind = "publish_transcript"
	CommandPublishState      CommandKind = "publish_state"
	CommandWarn              CommandKind = "warn"
)

// Command is an effect the runner must perform.
type Command struct {
	Kind      CommandKind
	Delay     time.Duration
	Finalized string
	Interim   string
	State     State
	Reason    string
	Message   string
}

// WarningPermissionDenied is surfaced when the microphone is refused.
const WarningPermissionDenied = "microphone permission denied; dictation stopped"

// transitions lists every legal state change.
var transitions = map[State][]State{
	StateIdle:       {StateStarting},
	StateStarting:   {StateListening, StateStopping, StateRestarting, StateDenied, StateIdle},
	StateListening:  {StateStopping, StateRestarting, StateDenied, StateIdle},
	StateStopping:   {StateIdle, StateStarting, StateDenied},
	StateRestarting: {StateStarting, StateIdle, StateDenied},
	StateDenied:     {StateStarting, StateIdle},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine is the pure capture state machine. It is not safe for concurrent
// use; Session serializes access.
type Machine struct {
	state        State
	manualStop   bool
	startPending bool // start requested while the previous recognizer is still stopping
	restartDelay time.Duration
	buf          Buffer
}

func NewMachine(restartDelay time.Duration) *Machine {
	if restartDelay <= 0 {
		restartDelay = 100 * time.Millisecond
	}
	return &Machine{state: StateIdle, restartDelay: restartDelay}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) ManualStop() bool { return m.manualStop }
func (m *Machine) Finalized() string { return m.buf.Finalized() }
func (m *Machine) Interim() string { return m.buf.Interim() }
func (m *Machine) Active() bool { return m.state == StateStarting || m.state == StateListening }
func (m *Machine) RestartDelay() time.Duration { return m.restartDelay }

// Handle applies ev and returns the commands to execute, in order.
func (m *Machine) Handle(ev Event) []Command {
	var out []Command
	switch ev.Kind {
	case EventStartRequested:
		if m.Active() {
			return nil
		}
		if m.state == StateStopping {
			// The old recognizer is still live until its end event.
			m.startPending = true
			return nil
		}
		m.manualStop = false
		out = m.clearInterim(out)
		out = m.to(out, StateStarting)
		out = append(out, Command{Kind: CommandStartRecognizer, Reason: "user"})

	case EventStopRequested:
		m.manualStop = true
		m.startPending = false
		switch m.state {
		case StateStarting, StateListening:
			out = m.to(out, StateStopping)
			out = append(out, Command{Kind: CommandStopRecognizer})
		case StateRestarting:
			out = m.to(out, StateIdle)
		}

	case EventRecognizerStarted:
		if m.state != StateStarting {
			return nil
		}
		out = m.clearInterim(out)
		out = m.to(out, StateListening)

	case EventRecognizerResult:
		if !m.Active() {
			return nil
		}
		if m.buf.Apply(ev.ResultIndex, ev.Results) {
			out = append(out, m.transcript())
		}

	case EventRecognizerEnded:
		out = m.clearInterim(out)
		out = m.afterRecognizerStopped(out, "ended")

	case EventRecognizerError:
		if m.state == StateIdle {
			return nil
		}
		out = m.clearInterim(out)
		if reliability.ClassifyRecognizerError(ev.ErrorCode) == reliability.RecognizerPermissionDenied {
			m.startPending = false
			if m.state != StateDenied {
				out = m.to(out, StateDenied)
				out = append(out, Command{Kind: CommandWarn, Message: WarningPermissionDenied, Reason: ev.ErrorCode})
			}
			return out
		}
		if m.state == StateStopping && m.startPending {
			// wait for the end event before starting the next recognizer
			return out
		}
		out = m.afterRecognizerStopped(out, "error:"+ev.ErrorCode)

	case EventRestartDue:
		if m.state != StateRestarting || m.manualStop {
			return nil
		}
		out = m.to(out, StateStarting)
		out = append(out, Command{Kind: CommandStartRecognizer, Reason: "restart"})

	case EventTeardown:
		m.manualStop = true
		m.startPending = false
		if m.Active() {
			out = append(out, Command{Kind: CommandStopRecognizer})
		}
		out = m.clearInterim(out)
		out = m.to(out, StateIdle)

	case EventSetText:
		m.buf.SetFinalized(ev.Text)
		out = append(out, m.transcript())

	case EventClear:
		m.buf.Reset()
		out = append(out, m.transcript())
	}
	return out
}

// afterRecognizerStopped decides between going idle and scheduling a single
// restart.
func (m *Machine) afterRecognizerStopped(out []Command, reason string) []Command {
	switch m.state {
	case StateDenied, StateIdle:
		return out
	case StateRestarting:
		// a restart is already pending
		return out
	}
	if m.state == StateStopping && m.startPending {
		m.startPending = false
		m.manualStop = false
		out = m.to(out, StateStarting)
		return append(out, Command{Kind: CommandStartRecognizer, Reason: "user"})
	}
	if m.manualStop {
		return m.to(out, StateIdle)
	}
	out = m.to(out, StateRestarting)
	return append(out, Command{Kind: CommandScheduleRestart, Delay: m.restartDelay, Reason: reason})
}

func (m *Machine) to(out []Command, next State) []Command {
	if m.state == next {
		return out
	}
	if !CanTransition(m.state, next) {
		return out
	}
	m.state = next
	return append(out, Command{Kind: CommandPublishState, State: next})
}

func (m *Machine) clearInterim(out []Command) []Command {
	if m.buf.ClearInterim() {
		out = append(out, m.transcript())
	}
	return out
}

func (m *Machine) transcript() Command {
	return Command{Kind: CommandPublishTranscript, Finalized: m.buf.Finalized(), Interim: m.buf.Interim()}
}
