package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krello/mathpipe/internal/config"
)

const ntProblem = "Find the remainder when a prime divides the sum. Use divisibility and prime factorization."

func testRunnerConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIBase = baseURL
	cfg.Model = "test-model"
	cfg.MaxRetries = 0
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

// chatHandler answers the classify stage with a domain and the label
// stage with structure labels, keyed off the system prompt.
func chatHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			t.Errorf("bad request body: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		content := `{"domain": "number_theory"}`
		if strings.Contains(req.Messages[0].Content, "analyst") {
			content = `{"from_text": {"objects": ["set"], "output_type": "proof"}, "from_solution": {"reasoning_shape": "branching"}}`
		}
		fmt.Fprintf(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":%s}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
			mustJSON(content))
	}
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestReadWriteRecords(t *testing.T) {
	in := `{"id": "a", "problem": {"text": "Find x."}, "code": "x = 1"}

{"problem": {"text": "Prove it."}}
`
	recs, err := ReadRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "Find x.", recs[0].Problem.Text)

	var buf strings.Builder
	require.NoError(t, WriteRecords(&buf, recs))
	again, err := ReadRecords(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, recs, again)
}

func TestReadRecordsBadLine(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("{\"id\": \"a\", \"problem\": {\"text\": \"ok\"}}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestSolutionCodeFallsBackToPassingAttempt(t *testing.T) {
	rec := &Record{
		Attempts: []Attempt{{Code: "wrong"}, {Code: "right"}},
		Outcome:  &Outcome{PassAtK: 2},
	}
	assert.Equal(t, "right", rec.SolutionCode())

	rec.Code = "top"
	assert.Equal(t, "top", rec.SolutionCode())

	assert.Empty(t, (&Record{Attempts: []Attempt{{Code: "x"}}}).SolutionCode())
}

func TestFilterDropsUnusableRecords(t *testing.T) {
	recs := []*Record{
		{Problem: Problem{Text: "Find x."}, Code: "x = 1"},
		{Problem: Problem{Text: "no code"}},
		{Code: "no text"},
	}
	kept := Filter(recs)
	require.Len(t, kept, 1)
	assert.Equal(t, "Find x.", kept[0].Problem.Text)
}

func TestSplitIsDeterministic(t *testing.T) {
	mk := func() []*Record {
		recs := make([]*Record, 8)
		for i := range recs {
			recs[i] = &Record{ID: fmt.Sprintf("r%d", i), Problem: Problem{Text: "p"}}
		}
		return recs
	}

	a, b := mk(), mk()
	Split(a, 0.25, 42)
	Split(b, 0.25, 42)
	for i := range a {
		assert.Equal(t, a[i].Split, b[i].Split, "record %d", i)
	}

	counts := SplitCounts(a)
	assert.Equal(t, 2, counts["val"])
	assert.Equal(t, 6, counts["train"])
}

func TestClassifyStage(t *testing.T) {
	srv := httptest.NewServer(chatHandler(t))
	defer srv.Close()

	r, err := NewRunner(testRunnerConfig(srv.URL), nil, io.Discard)
	require.NoError(t, err)
	defer r.Close()

	recs := []*Record{
		{Problem: Problem{Text: ntProblem}},
		{Problem: Problem{Text: ntProblem}},
	}
	sum, err := r.Classify(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Succeeded)
	assert.Zero(t, sum.Failed)
	assert.EqualValues(t, 4, sum.Usage.Requests)
	assert.EqualValues(t, 60, sum.Usage.TotalTokens)

	for _, rec := range recs {
		require.NotNil(t, rec.Structure)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "number_theory", rec.Structure.Domain)
		assert.Equal(t, "agree", rec.Structure.DomainMeta.Reason)
		// LLM claimed branching; the heuristics saw no branches.
		assert.Equal(t, "linear", rec.Structure.FromSolution.ReasoningShape)
		assert.Equal(t, []string{"set"}, rec.Structure.FromText.Objects)
		assert.Equal(t, "exact_value", rec.Structure.FromText.OutputType)
	}
}

func TestClassifyRecordFailuresDoNotAbortRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := NewRunner(testRunnerConfig(srv.URL), nil, io.Discard)
	require.NoError(t, err)
	defer r.Close()

	recs := []*Record{{Problem: Problem{Text: "Find x."}}, {Problem: Problem{Text: "Find y."}}}
	sum, err := r.Classify(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	assert.Zero(t, sum.Succeeded)
}

func TestLabelStageIsHeuristicOnly(t *testing.T) {
	r, err := NewRunner(testRunnerConfig("http://127.0.0.1:9"), nil, io.Discard)
	require.NoError(t, err)
	defer r.Close()

	recs := []*Record{{Problem: Problem{Text: ntProblem}, Code: "x = g(1)\nprint(x)"}}
	sum := r.Label(recs)

	assert.Equal(t, 1, sum.Succeeded)
	require.NotNil(t, recs[0].Structure)
	assert.Equal(t, "number_theory", recs[0].Structure.Domain)
	assert.Equal(t, "llm_missing_heuristic_fallback", recs[0].Structure.DomainMeta.Reason)
	for field, meta := range recs[0].Structure.ConsensusMeta {
		assert.Equal(t, "heuristic", meta.Source, "field=%s", field)
	}
}

func TestRuntimeReloadAdjustsWaveAndPool(t *testing.T) {
	cfg := testRunnerConfig("http://127.0.0.1:9")
	path := filepath.Join(t.TempDir(), "runtime.json")
	rt, err := config.NewRuntime(path, RuntimeDefaults(cfg))
	require.NoError(t, err)

	r, err := NewRunner(cfg, rt, io.Discard)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"wave_size": 4, "max_inflight": 2}`), 0644))

	wave := r.waveSize()
	r.afterWave(&wave)

	assert.Equal(t, 4, wave)
	assert.Equal(t, 2, r.inflightLimit())
}

func TestParseDomainReply(t *testing.T) {
	assert.Equal(t, "number_theory", parseDomainReply(`{"domain": "number_theory"}`))
	assert.Equal(t, "number_theory", parseDomainReply("```json\n{\"domain\": \"number_theory\"}\n```"))
	assert.Equal(t, "combinatorics", parseDomainReply(`{"domain": "probability"}`))
	assert.Empty(t, parseDomainReply("no json here"))
	assert.Empty(t, parseDomainReply(`{"domain": "astrology"}`))
}

func TestParseStructureReply(t *testing.T) {
	st := parseStructureReply(`{"from_text": {"objects": ["integer"]}, "from_solution": {"case_split": "binary"}}`)
	require.NotNil(t, st)
	assert.Equal(t, []string{"integer"}, st.FromText.Objects)
	assert.Equal(t, "binary", st.FromSolution.CaseSplit)

	assert.Nil(t, parseStructureReply("garbage"))
	assert.Nil(t, parseStructureReply(`{"unrelated": true}`))
}
