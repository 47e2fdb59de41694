// Package lint implements the bug/style analysis kind: per-language line
// heuristics producing issues, quality metrics, and extracted functions.
package lint

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

// analyzerName identifies this analyzer in status and report metadata.
const analyzerName = "lint-analyzer"

// maxLineLength is the generic long-line threshold.
const maxLineLength = 120

// Metric bounds and defaults.
const (
	maxComplexity        = 10
	maxMaintainability   = 10
	recursionPenalty     = 5
	genericMaintainStart = 8
)

// ErrNotLoaded is returned when Process runs before LoadResources.
var ErrNotLoaded = errors.New("lint: analyzer resources not loaded")

// languageAnalyzer inspects preprocessed code for one language.
type languageAnalyzer func(code string) (*analysis.Report, error)

// Analyzer is the lint analysis kind. Rule patterns are compiled once in
// LoadResources; Process is safe for repeated sequential use by its worker.
type Analyzer struct {
	byLanguage map[string]languageAnalyzer

	funcDeclRE   *regexp.Regexp
	methodRE     *regexp.Regexp
	pyFuncRE     *regexp.Regexp
	looseEqRE    *regexp.Regexp
	singleCharRE *regexp.Regexp

	loaded bool
}

// NewAnalyzer creates an unloaded lint analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Name returns the analyzer name.
func (a *Analyzer) Name() string { return analyzerName }

// Kind returns KindLint.
func (a *Analyzer) Kind() analysis.Kind { return analysis.KindLint }

// LoadResources compiles the rule patterns and registers per-language
// analyzers. Idempotent.
func (a *Analyzer) LoadResources(_ context.Context) error {
	if a.loaded {
		return nil
	}

	var err error

	a.funcDeclRE, err = regexp.Compile(`function\s+(\w+)\s*\(([^)]*)\)`)
	if err != nil {
		return fmt.Errorf("lint: compile function pattern: %w", err)
	}

	a.methodRE, err = regexp.Compile(`(?:public|private|protected)[\w\s<>\[\]]*\s(\w+)\s*\(`)
	if err != nil {
		return fmt.Errorf("lint: compile method pattern: %w", err)
	}

	a.pyFuncRE, err = regexp.Compile(`^def\s+(\w+)\s*\(([^)]*)\)`)
	if err != nil {
		return fmt.Errorf("lint: compile def pattern: %w", err)
	}

	a.looseEqRE, err = regexp.Compile(`[^=!<>]==[^=]`)
	if err != nil {
		return fmt.Errorf("lint: compile equality pattern: %w", err)
	}

	a.singleCharRE, err = regexp.Compile(`\b[a-z]\b`)
	if err != nil {
		return fmt.Errorf("lint: compile identifier pattern: %w", err)
	}

	a.byLanguage = map[string]languageAnalyzer{
		"javascript": a.analyzeJavaScript,
		"typescript": a.analyzeTypeScript,
		"python":     a.analyzePython,
		"java":       a.analyzeJava,
	}

	a.loaded = true

	return nil
}

// Process runs the language-specific analysis and attaches insights.
func (a *Analyzer) Process(_ context.Context, req analysis.Request) (*analysis.Result, error) {
	if !a.loaded {
		return nil, ErrNotLoaded
	}

	code := analysis.PreprocessCode(req.Code)

	analyze, ok := a.byLanguage[req.Language]
	if !ok {
		analyze = a.analyzeGeneric
	}

	report, err := analyze(code)
	if err != nil {
		return nil, err
	}

	report.Insights = buildInsights(report)

	return &analysis.Result{Report: report}, nil
}

// analyzeJavaScript applies the JavaScript rule set.
func (a *Analyzer) analyzeJavaScript(code string) (*analysis.Report, error) {
	lines := strings.Split(code, "\n")

	report := &analysis.Report{
		Issues:    []analysis.Issue{},
		Functions: []analysis.Function{},
		Metrics: analysis.Metrics{
			Complexity:           1,
			CyclomaticComplexity: 1,
			Maintainability:      maxMaintainability,
			LinesOfCode:          len(lines),
		},
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if strings.Contains(line, "var ") {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityWarning,
				Message:    "Use const or let instead of var",
				Line:       lineNo,
				Column:     1,
				Suggestion: "Replace var with const or let for better scoping",
				Rule:       "no-var",
			})
		}

		if a.looseEqRE.MatchString(line) && !strings.Contains(line, "===") {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityWarning,
				Message:    "Use strict equality (===) instead of loose equality (==)",
				Line:       lineNo,
				Column:     1,
				Suggestion: "Replace == with === for type-safe comparison",
				Rule:       "eqeqeq",
			})
		}

		if strings.Contains(line, "console.log") {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityInfo,
				Message:    "Console statement found",
				Line:       lineNo,
				Column:     1,
				Suggestion: "Remove console.log statements in production code",
				Rule:       "no-console",
			})
		}

		if m := a.funcDeclRE.FindStringSubmatch(line); m != nil {
			report.Functions = append(report.Functions, analysis.Function{
				Name:       m[1],
				StartLine:  lineNo,
				EndLine:    functionEndLine(lines, i),
				Complexity: 1,
				Parameters: splitParams(m[2]),
			})
		}

		if containsBranchKeyword(line) {
			report.Metrics.Complexity++
			report.Metrics.CyclomaticComplexity++
		}
	}

	if isRecursive(code, report.Functions) {
		report.Issues = append(report.Issues, analysis.Issue{
			Severity:   analysis.SeverityWarning,
			Message:    "Recursive function detected - potential performance issue",
			Line:       1,
			Column:     1,
			Suggestion: "Consider using iteration or memoization for better performance",
			Rule:       "no-unbounded-recursion",
		})
		report.Metrics.Complexity += recursionPenalty
	}

	finalizeMetrics(report)

	return report, nil
}

// analyzeTypeScript runs the JavaScript rules plus TypeScript-specific checks.
func (a *Analyzer) analyzeTypeScript(code string) (*analysis.Report, error) {
	report, err := a.analyzeJavaScript(code)
	if err != nil {
		return nil, err
	}

	for i, raw := range strings.Split(code, "\n") {
		if strings.Contains(raw, ": any") {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityWarning,
				Message:    "Avoid using any type",
				Line:       i + 1,
				Column:     1,
				Suggestion: "Use specific types for better type safety",
				Rule:       "no-explicit-any",
			})
		}
	}

	finalizeMetrics(report)

	return report, nil
}

// analyzePython applies the Python rule set.
func (a *Analyzer) analyzePython(code string) (*analysis.Report, error) {
	lines := strings.Split(code, "\n")

	report := &analysis.Report{
		Issues:    []analysis.Issue{},
		Functions: []analysis.Function{},
		Metrics: analysis.Metrics{
			Complexity:           1,
			CyclomaticComplexity: 1,
			Maintainability:      maxMaintainability,
			LinesOfCode:          len(lines),
		},
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if m := a.pyFuncRE.FindStringSubmatch(line); m != nil {
			report.Functions = append(report.Functions, analysis.Function{
				Name:       m[1],
				StartLine:  lineNo,
				EndLine:    pythonFunctionEndLine(lines, i),
				Complexity: 1,
				Parameters: splitParams(m[2]),
			})
		}

		if strings.HasPrefix(line, "if ") || strings.HasPrefix(line, "elif ") ||
			strings.HasPrefix(line, "for ") || strings.HasPrefix(line, "while ") {
			report.Metrics.Complexity++
			report.Metrics.CyclomaticComplexity++
		}

		if strings.Contains(line, "print(") {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityInfo,
				Message:    "Print statement found",
				Line:       lineNo,
				Column:     1,
				Suggestion: "Use the logging module instead of print in production code",
				Rule:       "no-print",
			})
		}
	}

	if isRecursive(code, report.Functions) {
		report.Issues = append(report.Issues, analysis.Issue{
			Severity:   analysis.SeverityWarning,
			Message:    "Recursive function detected - potential performance issue",
			Line:       1,
			Column:     1,
			Suggestion: "Consider using iteration or memoization for better performance",
			Rule:       "no-unbounded-recursion",
		})
		report.Metrics.Complexity += recursionPenalty
	}

	finalizeMetrics(report)

	return report, nil
}

// analyzeJava applies the Java rule set.
func (a *Analyzer) analyzeJava(code string) (*analysis.Report, error) {
	lines := strings.Split(code, "\n")

	report := &analysis.Report{
		Issues:    []analysis.Issue{},
		Functions: []analysis.Function{},
		Metrics: analysis.Metrics{
			Complexity:           1,
			CyclomaticComplexity: 1,
			Maintainability:      maxMaintainability,
			LinesOfCode:          len(lines),
		},
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if strings.Contains(line, "System.out.print") {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityInfo,
				Message:    "System.out.print statement found",
				Line:       lineNo,
				Column:     1,
				Suggestion: "Use logging framework instead of System.out.print",
				Rule:       "no-system-out",
			})
		}

		if m := a.methodRE.FindStringSubmatch(line); m != nil {
			report.Functions = append(report.Functions, analysis.Function{
				Name:       m[1],
				StartLine:  lineNo,
				EndLine:    functionEndLine(lines, i),
				Complexity: 1,
			})
		}

		if containsBranchKeyword(line) {
			report.Metrics.Complexity++
			report.Metrics.CyclomaticComplexity++
		}
	}

	finalizeMetrics(report)

	return report, nil
}

// analyzeGeneric applies checks that hold for most languages.
func (a *Analyzer) analyzeGeneric(code string) (*analysis.Report, error) {
	lines := strings.Split(code, "\n")

	report := &analysis.Report{
		Issues:    []analysis.Issue{},
		Functions: []analysis.Function{},
		Metrics: analysis.Metrics{
			Complexity:           1,
			CyclomaticComplexity: 1,
			Maintainability:      genericMaintainStart,
			LinesOfCode:          len(lines),
		},
	}

	for i, raw := range lines {
		if len(raw) > maxLineLength {
			report.Issues = append(report.Issues, analysis.Issue{
				Severity:   analysis.SeverityInfo,
				Message:    "Line too long",
				Line:       i + 1,
				Column:     maxLineLength + 1,
				Suggestion: "Keep lines under 120 characters for better readability",
				Rule:       "max-line-length",
			})
		}
	}

	finalizeMetrics(report)

	return report, nil
}

// branchKeywords increment cyclomatic complexity when found on a line.
var branchKeywords = []string{"if ", "if(", "for ", "for(", "while ", "while(", "switch ", "switch(", "case "}

func containsBranchKeyword(line string) bool {
	for _, kw := range branchKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}

	return false
}

// isRecursive reports whether any extracted function calls itself.
func isRecursive(code string, funcs []analysis.Function) bool {
	for _, fn := range funcs {
		if fn.Name == "" {
			continue
		}

		if strings.Count(code, fn.Name+"(") > 1 {
			return true
		}
	}

	return false
}

// functionEndLine finds the closing brace of a function opened at start,
// falling back to the last line when braces don't balance.
func functionEndLine(lines []string, start int) int {
	depth := 0
	opened := false

	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{")

		if depth > 0 {
			opened = true
		}

		depth -= strings.Count(lines[i], "}")

		if opened && depth <= 0 {
			return i + 1
		}
	}

	return len(lines)
}

// pythonFunctionEndLine finds the last line of a def block by indentation.
func pythonFunctionEndLine(lines []string, start int) int {
	baseIndent := indentOf(lines[start])
	end := start + 1

	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}

		if indentOf(line) <= baseIndent {
			break
		}

		end = i + 1
	}

	return end
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func splitParams(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	params := make([]string, 0, len(parts))

	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			params = append(params, trimmed)
		}
	}

	return params
}

// finalizeMetrics clamps complexity and derives maintainability from the
// issue count. Called after all issues are collected.
func finalizeMetrics(report *analysis.Report) {
	report.Metrics.Maintainability = max(1, maxMaintainability-len(report.Issues))

	if report.Metrics.Complexity > maxComplexity {
		report.Metrics.Complexity = maxComplexity
	}
}

// buildInsights derives pattern-level observations from the line findings.
func buildInsights(report *analysis.Report) analysis.Insights {
	insights := analysis.Insights{
		SemanticIssues:         []string{},
		PerformanceSuggestions: []string{},
		SecurityConcerns:       []string{},
		CodeSmells:             []string{},
	}

	for _, issue := range report.Issues {
		if issue.Rule == "no-unbounded-recursion" {
			insights.PerformanceSuggestions = append(insights.PerformanceSuggestions,
				"Consider optimizing recursive calls with memoization")
		}
	}

	if report.Metrics.Complexity > maxComplexity/2 {
		insights.CodeSmells = append(insights.CodeSmells, "Function complexity could be reduced")
	}

	return insights
}
