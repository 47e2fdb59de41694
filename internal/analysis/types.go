// Package analysis defines the analyzer contract and the structured report
// types shared by all analysis kinds (lint, refactor, testgen).
package analysis

import "time"

// Kind identifies an analysis kind. One worker per kind is maintained by the pool.
type Kind string

const (
	// KindLint is bug/style analysis producing issues, metrics, and functions.
	KindLint Kind = "lint"
	// KindRefactor is refactoring suggestion generation.
	KindRefactor Kind = "refactor"
	// KindTestgen is unit test case generation.
	KindTestgen Kind = "testgen"
)

// Kinds returns all analysis kinds in registration order.
func Kinds() []Kind {
	return []Kind{KindLint, KindRefactor, KindTestgen}
}

// Severity levels for reported issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Impact levels for refactoring suggestions.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// Request holds one analysis request. It is ephemeral: created when a
// protocol event arrives and discarded once the response (or error) is
// emitted. It is never persisted.
type Request struct {
	Code        string     `json:"code"`
	Language    string     `json:"language"`
	Kind        Kind       `json:"kind"`
	ClientID    string     `json:"clientId"`
	RequestedAt time.Time  `json:"requestedAt"`
	PriorIssues []Issue    `json:"priorIssues,omitempty"`
	PriorFuncs  []Function `json:"priorFunctions,omitempty"`
}

// Issue is a single finding in the analyzed code.
type Issue struct {
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Suggestion string `json:"suggestion,omitempty"`
	Rule       string `json:"rule,omitempty"`
}

// Metrics summarizes code quality measurements for one submission.
type Metrics struct {
	Complexity           int `json:"complexity"`
	Maintainability      int `json:"maintainability"`
	QualityScore         int `json:"codeQualityScore"`
	LinesOfCode          int `json:"linesOfCode"`
	CyclomaticComplexity int `json:"cyclomaticComplexity"`
}

// Function describes a function or method found in the submission.
type Function struct {
	Name       string   `json:"name"`
	StartLine  int      `json:"startLine"`
	EndLine    int      `json:"endLine"`
	Complexity int      `json:"complexity"`
	Parameters []string `json:"parameters,omitempty"`
}

// Insights holds pattern-level observations that complement line issues.
type Insights struct {
	SemanticIssues         []string `json:"semanticIssues"`
	PerformanceSuggestions []string `json:"performanceSuggestions"`
	SecurityConcerns       []string `json:"securityConcerns"`
	CodeSmells             []string `json:"codeSmells"`
}

// Report is the structured output of a lint analysis, enriched by the
// coordinator with hash, language, timestamp, and processing time before
// caching and emission.
type Report struct {
	Issues    []Issue    `json:"issues"`
	Metrics   Metrics    `json:"metrics"`
	Functions []Function `json:"functions"`
	Insights  Insights   `json:"aiInsights"`

	// Enrichment metadata, set by the coordinator.
	CodeHash         string `json:"codeHash,omitempty"`
	Language         string `json:"language,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	ProcessingTimeMS int64  `json:"processingTimeMs,omitempty"`
	Analyzer         string `json:"analyzer,omitempty"`
}

// Suggestion is one refactoring proposal. Suggestions are emitted sorted by
// ImpactScore descending, Confidence as tie-break, insertion order for ties.
type Suggestion struct {
	Type                 string   `json:"type"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	OriginalCode         string   `json:"originalCode"`
	RefactoredCode       string   `json:"refactoredCode"`
	Diff                 string   `json:"diff,omitempty"`
	LineStart            int      `json:"lineStart"`
	LineEnd              int      `json:"lineEnd"`
	Impact               string   `json:"impact"`
	ImpactScore          int      `json:"impactScore"`
	Confidence           int      `json:"confidence"`
	Benefits             []string `json:"benefits,omitempty"`
	EstimatedImprovement string   `json:"estimatedImprovement,omitempty"`
}

// TestCase is one generated test. Test cases are emitted sorted by Priority
// descending; equal priorities retain generation order.
type TestCase struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Type           string         `json:"type"`
	Framework      string         `json:"framework"`
	Code           string         `json:"code"`
	ExpectedResult string         `json:"expectedResult"`
	Priority       int            `json:"priority"`
	TestData       map[string]any `json:"testData,omitempty"`
}
