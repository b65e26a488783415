package dictation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrSessionClosed = errors.New("dictation session closed")

// RecognizerConfig is sent with every start command.
type RecognizerConfig struct {
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
}

// Sink performs the machine's effects, typically by writing to the browser.
type Sink interface {
	StartRecognizer(cfg RecognizerConfig) error
	StopRecognizer() error
	Transcript(finalized, interim string) error
	State(state State) error
	Warn(message string) error
}

// Observer is notified of lifecycle changes. Implementations must not block.
type Observer interface {
	StateChanged(sessionID string, state State)
	RestartScheduled(sessionID, reason string)
}

type Options struct {
	Language     string
	RestartDelay time.Duration
	Clock        Clock
	Logger       *slog.Logger
	Observer     Observer
}

// Session runs one Machine, consuming events from a queue so callbacks from
// the transport and the restart timer never race.
type Session struct {
	id       string
	machine  *Machine
	sink     Sink
	cfg      RecognizerConfig
	clock    Clock
	logger   *slog.Logger
	observer Observer

	events chan Event
	done   chan struct{}

	// owned by the run loop
	timer Timer

	mu        sync.RWMutex
	state     State
	finalized string
	interim   string
}

func NewSession(id string, sink Sink, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Language == "" {
		opts.Language = "tr-TR"
	}
	return &Session{
		id:      id,
		machine: NewMachine(opts.RestartDelay),
		sink:    sink,
		cfg: RecognizerConfig{
			Lang:           opts.Language,
			Continuous:     true,
			InterimResults: true,
		},
		clock:    opts.Clock,
		logger:   opts.Logger.With(slog.String("dictation_session", id)),
		observer: opts.Observer,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

func (s *Session) ID() string { return s.id }

// Send queues an event. It fails once the session has stopped.
func (s *Session) Send(ev Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Run processes events until ctx is cancelled, then tears the capture down as
// a manual stop.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.apply(Event{Kind: EventTeardown})
			s.stopTimer()
			return
		case ev := <-s.events:
			s.apply(ev)
			if ev.ack != nil {
				close(ev.ack)
			}
		}
	}
}

// Flush blocks until every event queued before it has been applied.
func (s *Session) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	if err := s.Send(Event{ack: ack}); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the last published state and transcript.
func (s *Session) Snapshot() (State, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.finalized, s.interim
}

func (s *Session) apply(ev Event) {
	for _, cmd := range s.machine.Handle(ev) {
		if err := s.exec(cmd); err != nil {
			s.logger.Warn("dictation command failed",
				slog.String("command", string(cmd.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Session) exec(cmd Command) error {
	switch cmd.Kind {
	case CommandStartRecognizer:
		s.stopTimer()
		return s.sink.StartRecognizer(s.cfg)
	case CommandStopRecognizer:
		s.stopTimer()
		return s.sink.StopRecognizer()
	case CommandScheduleRestart:
		s.stopTimer()
		s.logger.Debug("recognizer restart scheduled", slog.String("reason", cmd.Reason), slog.Duration("delay", cmd.Delay))
		if s.observer != nil {
			s.observer.RestartScheduled(s.id, cmd.Reason)
		}
		s.timer = s.clock.AfterFunc(cmd.Delay, func() {
			_ = s.Send(Event{Kind: EventRestartDue})
		})
		return nil
	case CommandPublishTranscript:
		s.mu.Lock()
		s.finalized, s.interim = cmd.Finalized, cmd.Interim
		s.mu.Unlock()
		return s.sink.Transcript(cmd.Finalized, cmd.Interim)
	case CommandPublishState:
		if cmd.State == StateIdle || cmd.State == StateDenied {
			s.stopTimer()
		}
		s.mu.Lock()
		s.state = cmd.State
		s.mu.Unlock()
		if s.observer != nil {
			s.observer.StateChanged(s.id, cmd.State)
		}
		return s.sink.State(cmd.State)
	case CommandWarn:
		s.logger.Warn("dictation warning", slog.String("reason", cmd.Reason))
		return s.sink.Warn(cmd.Message)
	}
	return nil
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
