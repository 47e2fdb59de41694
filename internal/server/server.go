// Package server exposes the realtime analysis protocol over WebSocket plus
// the HTTP status and diagnostics surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/coordinator"
	"github.com/Sumatoshi-tech/codepulse/internal/resultcache"
	"github.com/Sumatoshi-tech/codepulse/internal/worker"
	"github.com/Sumatoshi-tech/codepulse/pkg/observability"
)

// Operation labels for RED metrics.
const (
	opAnalyze  = "analyze"
	opRefactor = "refactor"
	opTestgen  = "testgen"
)

const connectedStatus = "Connected to CodePulse analysis server"

// Config bounds the protocol layer.
type Config struct {
	// HeartbeatInterval is the ping cadence; the read deadline allows
	// HeartbeatMisses missed pongs before the connection is dropped.
	HeartbeatInterval time.Duration
	HeartbeatMisses   int

	// WriteTimeout bounds each socket write.
	WriteTimeout time.Duration

	// MaxMessageBytes limits inbound frames. Zero means the gorilla
	// default (no limit).
	MaxMessageBytes int64
}

// Server handles WebSocket sessions and the HTTP API. Safe for concurrent
// use; per-connection state lives in the Session.
type Server struct {
	coord  *coordinator.Coordinator
	pool   *worker.Pool
	cache  *resultcache.Cache
	logger *slog.Logger
	tracer trace.Tracer
	red    *observability.REDMetrics
	cfg    Config

	metricsHandler http.Handler
	upgrader       websocket.Upgrader
	startedAt      time.Time
}

// New creates a protocol server over the given pipeline components.
// red and metricsHandler may be nil when metrics are disabled.
func New(
	coord *coordinator.Coordinator,
	pool *worker.Pool,
	cache *resultcache.Cache,
	logger *slog.Logger,
	tracer trace.Tracer,
	red *observability.REDMetrics,
	metricsHandler http.Handler,
	cfg Config,
) *Server {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 25 * time.Second
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Server{
		coord:          coord,
		pool:           pool,
		cache:          cache,
		logger:         logger.With("component", "server"),
		tracer:         tracer,
		red:            red,
		cfg:            cfg,
		metricsHandler: metricsHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The protocol carries no cookies or ambient credentials, so
			// cross-origin browser clients are accepted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startedAt: time.Now(),
	}
}

// Routes returns the full HTTP surface wrapped in tracing middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/readyz", observability.ReadyHandler(s.readyCheck))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/agents/status", s.handleAgentStatus)

	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}

	return observability.HTTPMiddleware(s.tracer, s.logger, mux)
}

// readyCheck gates /readyz on worker pool initialization.
func (s *Server) readyCheck(context.Context) error {
	if !s.pool.Initialized() {
		return worker.ErrWorkerUnavailable
	}

	return nil
}

// handleWS upgrades the connection and runs the session until the client
// disconnects or the heartbeat lapses.
func (s *Server) handleWS(rw http.ResponseWriter, hr *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, hr, nil)
	if err != nil {
		s.logger.WarnContext(hr.Context(), "websocket upgrade failed", "error", err)

		return
	}

	sess := newSession(conn, s.logger, s.cfg)

	s.pool.TrackConnection(sess.ID)
	defer s.pool.UntrackConnection(sess.ID)

	s.logger.InfoContext(hr.Context(), "client connected", "session", sess.ID)

	go sess.writeLoop()

	defer func() {
		sess.close()
		_ = conn.Close()
		s.logger.Info("client disconnected", "session", sess.ID)
	}()

	// The request context ends when the handler returns, so session work
	// runs on a background context carrying the request's trace.
	ctx := context.WithoutCancel(hr.Context())

	s.onConnect(ctx, sess)
	s.readLoop(ctx, sess, conn)
}

// onConnect lazily initializes the pool and acknowledges the session.
// An initialization failure is reported but the connection stays open:
// later requests retry via the pool's per-Get initialization.
func (s *Server) onConnect(ctx context.Context, sess *Session) {
	err := s.pool.Initialize(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "pool initialization failed", "error", err)
		sess.Emit(EventError, errorPayload{
			Message: "analysis workers unavailable",
			Code:    errCodeWorkerInit,
			Event:   EventConnect,
		})
	}

	sess.Emit(EventConnected, connectedPayload{
		SessionID:  sess.ID,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
		Status:     connectedStatus,
	})
}

// readLoop consumes inbound frames until the socket closes. Analysis
// requests are dispatched via runRequest; per-request event ordering is
// preserved because a request's events are emitted sequentially from its
// goroutine.
func (s *Server) readLoop(ctx context.Context, sess *Session, conn *websocket.Conn) {
	if s.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}

	_ = conn.SetReadDeadline(time.Now().Add(sess.readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(sess.readDeadline))
	})

	for {
		var envelope Envelope

		err := conn.ReadJSON(&envelope)
		if err != nil {
			if sess.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}

			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)

			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				sess.Emit(EventError, errorPayload{Message: "malformed frame", Code: errCodeBadEnvelope})

				continue
			}

			s.logger.Debug("read failed", "session", sess.ID, "error", err)

			return
		}

		if envelope.Event == EventDisconnect {
			return
		}

		s.dispatch(ctx, sess, envelope)
	}
}

// dispatch validates the payload and routes the event.
func (s *Server) dispatch(ctx context.Context, sess *Session, envelope Envelope) {
	err := validatePayload(envelope.Event, envelope.Data)
	if err != nil {
		sess.Emit(EventError, errorPayload{
			Message: err.Error(),
			Code:    errCodeValidation,
			Event:   envelope.Event,
		})

		return
	}

	switch envelope.Event {
	case EventConnect:
		s.onConnect(ctx, sess)
	case EventAnalyzeCode:
		s.runRequest(sess, envelope.Event, func() { s.handleAnalyze(ctx, sess, envelope.Data) })
	case EventGenRefactor:
		s.runRequest(sess, envelope.Event, func() { s.handleRefactor(ctx, sess, envelope.Data) })
	case EventGenTests:
		s.runRequest(sess, envelope.Event, func() { s.handleGenTests(ctx, sess, envelope.Data) })
	default:
		sess.Emit(EventError, errorPayload{
			Message: "unknown event: " + envelope.Event,
			Code:    errCodeBadEnvelope,
			Event:   envelope.Event,
		})
	}
}

// runRequest runs a request handler in its own goroutine so a long run
// never starves the heartbeat. A panic in a handler is converted into one
// error event; the session and the process stay up.
func (s *Server) runRequest(sess *Session, event string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			s.logger.Error("request panicked", "session", sess.ID, "event", event, "panic", r)
			sess.Emit(EventError, errorPayload{
				Message: "internal error",
				Code:    errCodeAnalysis,
				Event:   event,
			})
		}()

		fn()
	}()
}

func (s *Server) handleAnalyze(ctx context.Context, sess *Session, raw json.RawMessage) {
	ctx, span := s.tracer.Start(ctx, "ws analyze_code")
	defer span.End()

	req, err := decodeRequest(raw, analysis.KindLint, sess.ID)
	if err != nil {
		s.emitError(sess, EventAnalyzeCode, err)

		return
	}

	start := time.Now()

	report, err := s.coord.Analyze(ctx, req, func(progress int, message string) {
		sess.Emit(EventProgress, progressPayload{Progress: progress, Message: message})
	})

	s.recordOp(ctx, opAnalyze, err, time.Since(start))

	if err != nil {
		s.emitError(sess, EventAnalyzeCode, err)

		return
	}

	sess.Emit(EventComplete, report)
}

func (s *Server) handleRefactor(ctx context.Context, sess *Session, raw json.RawMessage) {
	ctx, span := s.tracer.Start(ctx, "ws generate_refactoring")
	defer span.End()

	req, err := decodeRequest(raw, analysis.KindRefactor, sess.ID)
	if err != nil {
		s.emitError(sess, EventGenRefactor, err)

		return
	}

	start := time.Now()

	suggestions, err := s.coord.Refactor(ctx, req)

	s.recordOp(ctx, opRefactor, err, time.Since(start))

	if err != nil {
		s.emitError(sess, EventGenRefactor, err)

		return
	}

	sess.Emit(EventSuggestions, suggestionsPayload{Suggestions: suggestions})
}

func (s *Server) handleGenTests(ctx context.Context, sess *Session, raw json.RawMessage) {
	ctx, span := s.tracer.Start(ctx, "ws generate_tests")
	defer span.End()

	req, err := decodeRequest(raw, analysis.KindTestgen, sess.ID)
	if err != nil {
		s.emitError(sess, EventGenTests, err)

		return
	}

	start := time.Now()

	cases, err := s.coord.GenerateTests(ctx, req)

	s.recordOp(ctx, opTestgen, err, time.Since(start))

	if err != nil {
		s.emitError(sess, EventGenTests, err)

		return
	}

	sess.Emit(EventTestsGenerated, testCasesPayload{TestCases: cases})
}

// errBadPayload marks a frame that passed schema validation but still
// failed to decode. Reported to the client as a validation failure.
var errBadPayload = errors.New("invalid payload")

// decodeRequest builds an analysis request from a validated payload.
func decodeRequest(raw json.RawMessage, kind analysis.Kind, clientID string) (analysis.Request, error) {
	var payload analyzePayload

	err := json.Unmarshal(raw, &payload)
	if err != nil {
		return analysis.Request{}, errors.Join(errBadPayload, err)
	}

	return analysis.Request{
		Code:        payload.Code,
		Language:    payload.Language,
		Kind:        kind,
		ClientID:    clientID,
		PriorIssues: payload.Issues,
		PriorFuncs:  payload.Functions,
	}, nil
}

// emitError maps a pipeline failure onto exactly one error event.
// Validation failures are the client's problem and are not logged as
// faults; everything else is.
func (s *Server) emitError(sess *Session, event string, err error) {
	code := errCodeAnalysis

	switch {
	case coordinator.IsValidationError(err), errors.Is(err, errBadPayload):
		code = errCodeValidation
	case errors.Is(err, worker.ErrWorkerUnavailable), errors.Is(err, worker.ErrUnknownKind):
		code = errCodeWorkerInit
		s.logger.Error("worker unavailable", "session", sess.ID, "event", event, "error", err)
	default:
		s.logger.Error("request failed", "session", sess.ID, "event", event, "error", err)
	}

	sess.Emit(EventError, errorPayload{Message: err.Error(), Code: code, Event: event})
}

// recordOp feeds RED metrics when enabled.
func (s *Server) recordOp(ctx context.Context, op string, err error, elapsed time.Duration) {
	if s.red == nil {
		return
	}

	s.red.RecordRequest(ctx, op, err != nil, elapsed)
}
