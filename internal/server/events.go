package server

import (
	"encoding/json"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

// Client → server events.
const (
	EventConnect     = "connect"
	EventAnalyzeCode = "analyze_code"
	EventGenRefactor = "generate_refactoring"
	EventGenTests    = "generate_tests"
	EventDisconnect  = "disconnect"
)

// Server → client events.
const (
	EventConnected      = "connected"
	EventProgress       = "analysis_progress"
	EventComplete       = "analysis_complete"
	EventSuggestions    = "refactor_suggestions"
	EventTestsGenerated = "test_cases_generated"
	EventError          = "error"
)

// Error codes carried on EventError payloads.
const (
	errCodeValidation  = "validation_error"
	errCodeWorkerInit  = "worker_unavailable"
	errCodeAnalysis    = "analysis_error"
	errCodeBadEnvelope = "bad_request"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is a server-side frame before marshaling; Data is any
// JSON-encodable payload.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// connectedPayload acknowledges a new session. ServerTime is RFC3339 UTC;
// clients use it to offset their clocks against the server's.
type connectedPayload struct {
	SessionID  string `json:"sessionId"`
	ServerTime string `json:"serverTime"`
	Status     string `json:"status"`
}

// analyzePayload is the inbound body for analyze_code, generate_refactoring
// and generate_tests. The optional prior-analysis context feeds the refactor
// and testgen analyzers.
type analyzePayload struct {
	Code      string              `json:"code"`
	Language  string              `json:"language,omitempty"`
	Issues    []analysis.Issue    `json:"issues,omitempty"`
	Functions []analysis.Function `json:"functions,omitempty"`
}

// progressPayload streams pipeline checkpoints.
type progressPayload struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// errorPayload reports a failed request. Exactly one is emitted per failure.
type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
}

// suggestionsPayload carries generated refactoring suggestions.
type suggestionsPayload struct {
	Suggestions any `json:"suggestions"`
}

// testCasesPayload carries generated test cases.
type testCasesPayload struct {
	TestCases any `json:"testCases"`
}
