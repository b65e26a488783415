package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/bus"
	"github.com/ent0n29/katibim/internal/dictation"
	"github.com/ent0n29/katibim/internal/observability"
	"github.com/ent0n29/katibim/internal/protocol"
)

// DictationNotifier receives session lifecycle events, typically the message
// bus.
type DictationNotifier interface {
	PublishDictationEvent(ctx context.Context, ev bus.DictationEvent) error
}

var errOutboundFull = errors.New("outbound queue full")

const (
	defaultWSReadTimeout  = 120 * time.Second
	defaultWSPingInterval = 30 * time.Second
	wsWriteWait           = 10 * time.Second
	// wsDrainWait bounds flushing teardown messages on a closing socket.
	wsDrainWait = time.Second
)

// wsSink turns machine commands into outbound websocket messages. It never
// blocks the session loop; a saturated queue drops the message.
type wsSink struct {
	sessionID string
	outbound  chan<- any
	metrics   *observability.Metrics
}

func (k wsSink) push(t protocol.MessageType, msg any) error {
	select {
	case k.outbound <- msg:
		return nil
	default:
		if k.metrics != nil {
			k.metrics.WSMessages.WithLabelValues("dropped", string(t)).Inc()
		}
		return errOutboundFull
	}
}

func (k wsSink) StartRecognizer(cfg dictation.RecognizerConfig) error {
	return k.push(protocol.TypeRecognizerCommand, protocol.RecognizerCommand{
		Type:           protocol.TypeRecognizerCommand,
		SessionID:      k.sessionID,
		Action:         protocol.ActionStart,
		Lang:           cfg.Lang,
		Continuous:     cfg.Continuous,
		InterimResults: cfg.InterimResults,
	})
}

func (k wsSink) StopRecognizer() error {
	return k.push(protocol.TypeRecognizerCommand, protocol.RecognizerCommand{
		Type:      protocol.TypeRecognizerCommand,
		SessionID: k.sessionID,
		Action:    protocol.ActionStop,
	})
}

func (k wsSink) Transcript(finalized, interim string) error {
	return k.push(protocol.TypeTranscript, protocol.Transcript{
		Type:      protocol.TypeTranscript,
		SessionID: k.sessionID,
		Finalized: finalized,
		Interim:   interim,
	})
}

func (k wsSink) State(state dictation.State) error {
	return k.push(protocol.TypeDictationState, protocol.DictationState{
		Type:      protocol.TypeDictationState,
		SessionID: k.sessionID,
		State:     string(state),
	})
}

func (k wsSink) Warn(message string) error {
	return k.push(protocol.TypeWarning, protocol.Warning{
		Type:      protocol.TypeWarning,
		SessionID: k.sessionID,
		Message:   message,
	})
}

// dictationObserver feeds lifecycle changes to metrics and the bus.
type dictationObserver struct {
	userID   string
	metrics  *observability.Metrics
	notifier DictationNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func (o dictationObserver) StateChanged(sessionID string, state dictation.State) {
	o.metrics.ObserveIndicator("dictation_" + string(state))
	if o.notifier == nil {
		return
	}
	err := o.notifier.PublishDictationEvent(context.Background(), bus.DictationEvent{
		SessionID: sessionID,
		UserID:    o.userID,
		State:     string(state),
		At:        o.now().UTC(),
	})
	if err != nil {
		o.logger.Warn("dictation event publish failed",
			slog.String("dictation_session", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (o dictationObserver) RestartScheduled(_ string, reason string) {
	if o.metrics != nil {
		o.metrics.RecognizerRestart.WithLabelValues(reason).Inc()
	}
}

func (s *Server) handleDictationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	user, _ := auth.FromContext(r.Context())
	logger := s.logger.With(slog.String("dictation_session", sessionID))

	if s.metrics != nil {
		s.metrics.ActiveDictations.Inc()
		defer s.metrics.ActiveDictations.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	sink := wsSink{sessionID: sessionID, outbound: outbound, metrics: s.metrics}
	sess := dictation.NewSession(sessionID, sink, dictation.Options{
		Language:     s.cfg.DictationLanguage,
		RestartDelay: s.cfg.DictationRestartDelay,
		Clock:        s.clock,
		Logger:       s.logger,
		Observer: dictationObserver{
			userID:   user.User.ID,
			metrics:  s.metrics,
			notifier: s.notifier,
			logger:   s.logger,
			now:      time.Now,
		},
	})
	_ = sink.State(dictation.StateIdle)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		sess.Run(ctx)
	}()

	write := func(msg any, wait time.Duration) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("dictation write failed", slog.String("error", err.Error()))
			return false
		}
		if t, ok := messageTypeOf(msg); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
		}
		return true
	}

	// The writer outlives ctx so the stop command queued by teardown still
	// reaches the browser.
	stopWriter := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(s.wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-stopWriter:
				for {
					select {
					case msg := <-outbound:
						if !write(msg, wsDrainWait) {
							return
						}
					default:
						return
					}
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					logger.Debug("dictation ping failed", slog.String("error", err.Error()))
					cancel()
					_ = conn.Close()
					return
				}
			case msg := <-outbound:
				if !write(msg, wsWriteWait) {
					cancel()
					_ = conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout))
		return nil
	})

	logger.Info("dictation session connected")
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout))
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			_ = sink.push(protocol.TypeErrorEvent, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		ev, ok := dictationEventFor(parsed)
		if !ok {
			continue
		}
		if err := sess.Send(ev); err != nil {
			break
		}
	}

	// Teardown on disconnect counts as a manual stop.
	cancel()
	<-runDone
	close(stopWriter)
	<-writerDone
	logger.Info("dictation session closed")
}

func dictationEventFor(msg any) (dictation.Event, bool) {
	switch m := msg.(type) {
	case protocol.RecognizerEvent:
		switch m.Event {
		case protocol.RecognizerStart:
			return dictation.Event{Kind: dictation.EventRecognizerStarted}, true
		case protocol.RecognizerResult:
			results := make([]dictation.Result, 0, len(m.Results))
			for _, res := range m.Results {
				results = append(results, dictation.Result{Transcript: res.Transcript, IsFinal: res.IsFinal})
			}
			return dictation.Event{Kind: dictation.EventRecognizerResult, ResultIndex: m.ResultIndex, Results: results}, true
		case protocol.RecognizerEnd:
			return dictation.Event{Kind: dictation.EventRecognizerEnded}, true
		case protocol.RecognizerError:
			return dictation.Event{Kind: dictation.EventRecognizerError, ErrorCode: m.Error}, true
		}
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionStart:
			return dictation.Event{Kind: dictation.EventStartRequested}, true
		case protocol.ActionStop:
			return dictation.Event{Kind: dictation.EventStopRequested}, true
		case protocol.ActionSetText:
			return dictation.Event{Kind: dictation.EventSetText, Text: m.Text}, true
		case protocol.ActionClear:
			return dictation.Event{Kind: dictation.EventClear}, true
		}
	}
	return dictation.Event{}, false
}
