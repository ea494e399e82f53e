package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 2, 3, 4, 0, time.UTC)

// Golden files are handwritten from the step semantics; a change to a trace
// line is a behaviour change and needs review before running with -update.
func TestRunWithGolden_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRender(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace,
		TraceEvent{Seq: 1, Op: "step", Task: "copy", Count: 1, Applied: 1, Finished: true},
		TraceEvent{Seq: 2, Op: "run", Task: "copy", Error: "PROGRESS_STALL"},
	)

	want := "scenario demo\n" +
		"[1] step copy: count=1 applied=1 finished=true cursor={}\n" +
		"[2] run copy: error=PROGRESS_STALL\n"
	assert.Equal(t, want, result.Render("demo"))
}
