package testgen_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/analysis/testgen"
)

const fibonacciJS = `function fibonacci(n) {
  if (n <= 1) return n;
  return fibonacci(n - 1) + fibonacci(n - 2);
}`

func loadedAnalyzer(t *testing.T) *testgen.Analyzer {
	t.Helper()

	a := testgen.NewAnalyzer()
	require.NoError(t, a.LoadResources(context.Background()))

	return a
}

func generate(t *testing.T, a *testgen.Analyzer, req analysis.Request) []analysis.TestCase {
	t.Helper()

	result, err := a.Process(context.Background(), req)
	require.NoError(t, err)

	return result.TestCases
}

func frameworks(cases []analysis.TestCase) map[string]int {
	counts := make(map[string]int)
	for _, tc := range cases {
		counts[tc.Framework]++
	}

	return counts
}

func TestAnalyzer_ProcessBeforeLoad(t *testing.T) {
	t.Parallel()

	a := testgen.NewAnalyzer()

	_, err := a.Process(context.Background(), analysis.Request{Code: "x", Language: "python"})
	require.ErrorIs(t, err, testgen.ErrNotLoaded)
}

func TestAnalyzer_JestForFibonacci(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	cases := generate(t, a, analysis.Request{Code: fibonacciJS, Language: "javascript"})
	require.NotEmpty(t, cases)

	assert.Positive(t, frameworks(cases)["jest"])

	// Base cases carry the highest priority and come first.
	assert.Equal(t, 9, cases[0].Priority)
	assert.Contains(t, cases[0].Name, "fibonacci")
	assert.Contains(t, cases[0].Code, "expect(fibonacci(0)).toBe(0)")

	// Edge cases are appended for the fibonacci pattern.
	var edgeTypes []string

	for _, tc := range cases {
		if tc.Type != "unit" {
			edgeTypes = append(edgeTypes, tc.Type)
		}
	}

	assert.Contains(t, edgeTypes, "edge_case")
	assert.Contains(t, edgeTypes, "performance")
}

func TestAnalyzer_PytestForPython(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	code := `def process(items):
    return [i for i in items]`

	cases := generate(t, a, analysis.Request{Code: code, Language: "python"})
	require.Len(t, cases, 1)

	tc := cases[0]
	assert.Equal(t, "test_process_exists", tc.Name)
	assert.Equal(t, "pytest", tc.Framework)
	assert.Contains(t, tc.Code, "callable(process)")
}

func TestAnalyzer_TypeScriptAddsTypeProbes(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	cases := generate(t, a, analysis.Request{Code: fibonacciJS, Language: "typescript"})

	var typeProbes int

	for _, tc := range cases {
		if tc.Priority == 6 {
			typeProbes++

			assert.Contains(t, tc.Code, "toThrow")
		}
	}

	assert.Equal(t, 1, typeProbes)
}

func TestAnalyzer_JUnitForJava(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	// Java extraction is not supported, so functions come from prior
	// analysis context.
	cases := generate(t, a, analysis.Request{
		Code:       "public int sum(int a, int b) { return a + b; }",
		Language:   "java",
		PriorFuncs: []analysis.Function{{Name: "sum", StartLine: 1}},
	})
	require.Len(t, cases, 1)

	assert.Equal(t, "testSum", cases[0].Name)
	assert.Equal(t, "junit", cases[0].Framework)
	assert.Contains(t, cases[0].Code, "@Test")
}

func TestAnalyzer_UnnamedPriorFunctionsSkipped(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	// Prior function context is client-supplied; empty objects and blank
	// names must not reach the templates.
	cases := generate(t, a, analysis.Request{
		Code:       "public class Calculator {}",
		Language:   "java",
		PriorFuncs: []analysis.Function{{}, {Name: "   "}, {Name: "sum"}},
	})
	require.Len(t, cases, 1)
	assert.Equal(t, "testSum", cases[0].Name)

	// All-blank context degrades to extraction, which yields nothing for
	// Java, not a failure.
	cases = generate(t, a, analysis.Request{
		Code:       "public class Calculator {}",
		Language:   "java",
		PriorFuncs: []analysis.Function{{}},
	})
	require.NotNil(t, cases)
	assert.Empty(t, cases)
}

func TestAnalyzer_PriorFunctionsSkipExtraction(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	cases := generate(t, a, analysis.Request{
		Code:       "some opaque code",
		Language:   "javascript",
		PriorFuncs: []analysis.Function{{Name: "transmit"}},
	})
	require.Len(t, cases, 1)

	assert.Equal(t, "transmit should be defined", cases[0].Name)
}

func TestAnalyzer_SortedByPriorityTiesKeepGenerationOrder(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	cases := generate(t, a, analysis.Request{Code: fibonacciJS, Language: "typescript"})
	require.Greater(t, len(cases), 2)

	sorted := sort.SliceIsSorted(cases, func(i, j int) bool {
		return cases[i].Priority > cases[j].Priority
	})
	assert.True(t, sorted)

	// The two edge probes share a priority; they stay in generation order
	// (negative input before large input), not name order.
	var edgeNames []string

	for _, tc := range cases {
		if tc.Priority == 7 {
			edgeNames = append(edgeNames, tc.Name)
		}
	}

	require.Len(t, edgeNames, 2)
	assert.Contains(t, edgeNames[0], "negative")
	assert.Contains(t, edgeNames[1], "large")
}

func TestAnalyzer_NoFunctionsYieldsEmptySlice(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	cases := generate(t, a, analysis.Request{Code: "x = 1", Language: "javascript"})

	require.NotNil(t, cases)
	assert.Empty(t, cases)
}

func TestAnalyzer_GenericFallback(t *testing.T) {
	t.Parallel()

	a := loadedAnalyzer(t)

	cases := generate(t, a, analysis.Request{
		Code:       "func Sum(a, b int) int { return a + b }",
		Language:   "go",
		PriorFuncs: []analysis.Function{{Name: "Sum"}},
	})
	require.Len(t, cases, 1)

	assert.Equal(t, "generic", cases[0].Framework)
	assert.Equal(t, "test_Sum", cases[0].Name)
}
