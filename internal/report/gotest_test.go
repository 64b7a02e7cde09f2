package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTestParser_CanParse(t *testing.T) {
	parser := &GoTestParser{}

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "Standard go test failure", input: `--- FAIL: TestExample (0.01s)`, expected: true},
		{name: "Gotestsum format", input: `=== FAIL: github.com/pkg/example TestExample (0.01s)`, expected: true},
		{name: "Package failure line", input: "FAIL\tgithub.com/pkg/example\t0.015s", expected: true},
		{name: "No test failures", input: "PASS\nok      github.com/pkg/example  0.015s", expected: false},
		{name: "Lint finding", input: `file.go:10:5: unchecked error (errcheck)`, expected: false},
		{name: "Python failure", input: "FAIL: test_x (a.B)", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parser.CanParse(linesOf(tt.input)))
		})
	}
}

func TestGoTestParser_SingleTestFailure(t *testing.T) {
	input := "--- FAIL: TestExample (0.01s)\n" +
		"    example_test.go:42:\n" +
		"        Error Trace:\t/path/example_test.go:42\n" +
		"        Error:      \texpected 1, got 2\n" +
		"        Test:       \tTestExample\n" +
		"FAIL\n" +
		"FAIL\tgithub.com/pkg/example\t0.015s"

	failures, err := (&GoTestParser{}).Parse(linesOf(input))
	require.NoError(t, err)
	require.Len(t, failures, 1)

	assert.Equal(t, "TestExample", failures[0].Test)
	assert.Equal(t, "github.com/pkg/example", failures[0].Suite)
	assert.Equal(t, "example_test.go", failures[0].File)
	assert.Equal(t, 42, failures[0].Line)
	assert.Equal(t, "expected 1, got 2", failures[0].Message)
}

func TestGoTestParser_KeepsReportOrder(t *testing.T) {
	input := "--- FAIL: TestParent (0.00s)\n" +
		"    --- FAIL: TestParent/first (0.00s)\n" +
		"        parent_test.go:25: boom\n" +
		"    --- FAIL: TestParent/second (0.00s)\n" +
		"        parent_test.go:31: bang\n" +
		"--- FAIL: TestParent (0.00s)\n" +
		"FAIL\n" +
		"FAIL\tgithub.com/pkg/example\t0.010s"

	failures, err := (&GoTestParser{}).Parse(linesOf(input))
	require.NoError(t, err)
	require.Len(t, failures, 3)

	names := []string{failures[0].Test, failures[1].Test, failures[2].Test}
	assert.Equal(t, []string{"TestParent", "TestParent/first", "TestParent/second"}, names)
	for _, f := range failures {
		assert.Equal(t, "github.com/pkg/example", f.Suite)
	}
}

func TestGoTestParser_Gotestsum(t *testing.T) {
	input := "=== FAIL: internal/store TestPut (0.02s)\n" +
		"    store_test.go:18: duplicate key"

	failures, err := (&GoTestParser{}).Parse(linesOf(input))
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "internal/store", failures[0].Suite)
	assert.Equal(t, "TestPut", failures[0].Test)
	assert.Equal(t, "store_test.go", failures[0].File)
	assert.Equal(t, 18, failures[0].Line)
}

func TestGoTestParser_NoTestFailures(t *testing.T) {
	input := "=== RUN   TestExample\n--- PASS: TestExample (0.00s)\nPASS\nok      github.com/pkg/example  0.010s"

	failures, err := (&GoTestParser{}).Parse(linesOf(input))
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestGoTestParser_TruncatedLog(t *testing.T) {
	failures, err := (&GoTestParser{}).Parse(linesOf("--- FAIL: TestTruncated (0.01s)\n    truncated_test.go:50:"))
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "TestTruncated", failures[0].Test)
	assert.Equal(t, 50, failures[0].Line)
}
