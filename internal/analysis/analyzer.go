package analysis

import "context"

// Analyzer is the contract every analysis kind implements. Implementations
// are stateful only in their loaded resources: Process must be safe to call
// repeatedly and must not retain the request after returning.
type Analyzer interface {
	// Name returns the analyzer's human-readable name for status reporting.
	Name() string

	// Kind returns the analysis kind this analyzer serves.
	Kind() Kind

	// LoadResources loads the analyzer's rule sets or models. It is called
	// once by the owning worker before the first Process call and may block
	// for a cold load.
	LoadResources(ctx context.Context) error

	// Process analyzes the request and returns a result. The call is
	// blocking and not cancellable mid-run; ctx bounds only setup steps.
	Process(ctx context.Context, req Request) (*Result, error)
}

// Result is the polymorphic analyzer output. Exactly one field is populated,
// matching the analyzer's kind.
type Result struct {
	Report      *Report      `json:"report,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	TestCases   []TestCase   `json:"testCases,omitempty"`
}
