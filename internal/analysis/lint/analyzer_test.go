package lint_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/analysis/lint"
)

func loadedAnalyzer(t *testing.T) *lint.Analyzer {
	t.Helper()

	a := lint.NewAnalyzer()
	require.NoError(t, a.LoadResources(context.Background()))

	return a
}

func run(t *testing.T, a *lint.Analyzer, code, language string) *analysis.Report {
	t.Helper()

	result, err := a.Process(context.Background(), analysis.Request{Code: code, Language: language})
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	return result.Report
}

func ruleNames(report *analysis.Report) []string {
	rules := make([]string, 0, len(report.Issues))
	for _, issue := range report.Issues {
		rules = append(rules, issue.Rule)
	}

	return rules
}

func TestAnalyzer_ProcessBeforeLoad(t *testing.T) {
	t.Parallel()

	a := lint.NewAnalyzer()

	_, err := a.Process(context.Background(), analysis.Request{Code: "x", Language: "javascript"})
	require.ErrorIs(t, err, lint.ErrNotLoaded)
}

func TestAnalyzer_LoadIdempotent(t *testing.T) {
	t.Parallel()

	a := lint.NewAnalyzer()
	require.NoError(t, a.LoadResources(context.Background()))
	require.NoError(t, a.LoadResources(context.Background()))
}

func TestAnalyzer_JavaScriptRules(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `var count = 0;
if (count == 1) {
  console.log(count);
}`

	report := run(t, a, code, "javascript")

	rules := ruleNames(report)
	assert.Contains(t, rules, "no-var")
	assert.Contains(t, rules, "eqeqeq")
	assert.Contains(t, rules, "no-console")

	// The == finding points at the if line.
	for _, issue := range report.Issues {
		if issue.Rule == "eqeqeq" {
			assert.Equal(t, 2, issue.Line)
		}
	}
}

func TestAnalyzer_StrictEqualityNotFlagged(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	report := run(t, a, `if (count === 1) { total += 1; }`, "javascript")

	assert.NotContains(t, ruleNames(report), "eqeqeq")
}

func TestAnalyzer_FunctionExtraction(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `function add(a, b) {
  return a + b;
}

function greet() {
  return "hi";
}`

	report := run(t, a, code, "javascript")

	require.Len(t, report.Functions, 2)

	add := report.Functions[0]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, 1, add.StartLine)
	assert.Equal(t, 3, add.EndLine)
	assert.Equal(t, []string{"a", "b"}, add.Parameters)

	greet := report.Functions[1]
	assert.Equal(t, "greet", greet.Name)
	assert.Empty(t, greet.Parameters)
}

func TestAnalyzer_RecursionDetected(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `function fibonacci(n) {
  if (n <= 1) return n;
  return fibonacci(n - 1) + fibonacci(n - 2);
}`

	report := run(t, a, code, "javascript")

	assert.Contains(t, ruleNames(report), "no-unbounded-recursion")
	assert.NotEmpty(t, report.Insights.PerformanceSuggestions)
}

func TestAnalyzer_CleanCodeScoresWell(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	report := run(t, a, `const total = items.length;`, "javascript")

	assert.Empty(t, report.Issues)
	assert.Equal(t, 10, report.Metrics.Maintainability)
	assert.Equal(t, 1, report.Metrics.Complexity)
}

func TestAnalyzer_ComplexityCounting(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `function route(x) {
  if (x > 0) {
    for (let i = 0; i < x; i++) {
      while (busy()) {
        wait();
      }
    }
  }
}`

	report := run(t, a, code, "javascript")

	// Base 1 plus if/for/while.
	assert.Equal(t, 4, report.Metrics.CyclomaticComplexity)
}

func TestAnalyzer_TypeScriptAnyRule(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	report := run(t, a, `function parse(input: any) { return input; }`, "typescript")

	assert.Contains(t, ruleNames(report), "no-explicit-any")
}

func TestAnalyzer_PythonRules(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `def process(items):
    for item in items:
        if item:
            print(item)

done = True`

	report := run(t, a, code, "python")

	assert.Contains(t, ruleNames(report), "no-print")

	require.Len(t, report.Functions, 1)
	assert.Equal(t, "process", report.Functions[0].Name)
	assert.Equal(t, 1, report.Functions[0].StartLine)
	assert.Equal(t, 4, report.Functions[0].EndLine)
	assert.Equal(t, []string{"items"}, report.Functions[0].Parameters)

	// Base 1 plus for/if.
	assert.Equal(t, 3, report.Metrics.CyclomaticComplexity)
}

func TestAnalyzer_JavaRules(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `public int sum(int a, int b) {
    System.out.println(a);
    return a + b;
}`

	report := run(t, a, code, "java")

	assert.Contains(t, ruleNames(report), "no-system-out")
	require.NotEmpty(t, report.Functions)
	assert.Equal(t, "sum", report.Functions[0].Name)
}

func TestAnalyzer_GenericLongLines(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	long := "SELECT " + strings.Repeat("column_name, ", 30)

	report := run(t, a, long, "sql")

	assert.Contains(t, ruleNames(report), "max-line-length")
}

func TestAnalyzer_MaintainabilityFloor(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	// Twelve issues drive maintainability below zero; it clamps to 1.
	code := ""
	for range 12 {
		code += "var x = 1; console.log(x);\n"
	}

	report := run(t, a, code, "javascript")

	assert.Equal(t, 1, report.Metrics.Maintainability)
}
