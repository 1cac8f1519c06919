package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/ingest"
	"github.com/callveil/callveil/internal/llm"
	"github.com/callveil/callveil/internal/ner"
	"github.com/callveil/callveil/internal/redact"
)

// nameRecognizer tags every occurrence of a fixed name as PERSON.
type nameRecognizer struct {
	name string
}

func (r *nameRecognizer) Recognize(ctx context.Context, text string) ([]ner.Entity, error) {
	var entities []ner.Entity
	from := 0
	for {
		idx := strings.Index(text[from:], r.name)
		if idx < 0 {
			break
		}
		start := from + idx
		entities = append(entities, ner.Entity{
			Text:  r.name,
			Label: "PERSON",
			Start: start,
			End:   start + len(r.name),
		})
		from = start + len(r.name)
	}
	return entities, nil
}

func (r *nameRecognizer) Close() error { return nil }

type testEnv struct {
	pipeline *Pipeline
	config   *Config
	calls    *int32
}

// newTestEnv wires a pipeline against a fake generation endpoint that echoes
// an analysis referencing [PERSON_1].
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()

	var calls int32
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			content := `{"category":"billing","summary":"[PERSON_1] complained about a charge","entities":["[PERSON_1]"],"confidence":0.8}`
			resp := map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": content}},
				},
			}
			json.NewEncoder(w).Encode(resp)
		}
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	t.Setenv("TEST_LLM_KEY", "secret")
	client, err := llm.NewClient(&llm.Config{
		BaseURL:        server.URL,
		APIKeyEnv:      "TEST_LLM_KEY",
		Model:          "test-model",
		Timeout:        5 * time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
		RequestsPerMin: 6000,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	engine, err := redact.New(&nameRecognizer{name: "John"}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "calls.json")
	writeInput(t, input, []ingest.CallRecord{
		{CallID: "CALL-001", Transcript: "Hi John, your card 4242-4242-4242-4242 was charged."},
		{CallID: "CALL-002", Transcript: "John asked for a refund."},
	})

	cfg := &Config{
		InputFile:      input,
		OutputFile:     filepath.Join(dir, "out", "analysis.json"),
		CheckpointFile: filepath.Join(dir, "out", "checkpoint.json"),
		DeadLetterFile: filepath.Join(dir, "dlq", "failed.log"),
		Concurrency:    1,
	}

	p := New(cfg, engine, client, ingest.NewLoader(zap.NewNop()), nil, nil, nil, zap.NewNop())
	return &testEnv{pipeline: p, config: cfg, calls: &calls}
}

func writeInput(t *testing.T, path string, records []ingest.CallRecord) {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readOutput(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	var results []map[string]any
	if err := json.Unmarshal(data, &results); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	return results
}

func TestPipelineRun(t *testing.T) {
	env := newTestEnv(t, nil)

	result, err := env.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Processed != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	results := readOutput(t, env.config.OutputFile)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	byID := make(map[string]map[string]any)
	for _, r := range results {
		byID[r["call_id"].(string)] = r
	}

	// The analysis came back masked and was rehydrated locally.
	summary, _ := byID["CALL-001"]["summary"].(string)
	if summary != "John complained about a charge" {
		t.Errorf("summary = %q", summary)
	}
	if strings.Contains(summary, "[PERSON_1]") {
		t.Error("placeholder survived rehydration")
	}
}

func TestPipelineResume(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstCalls := atomic.LoadInt32(env.calls)

	// A fresh pipeline over the same files resumes from the checkpoint and
	// has nothing to do.
	resumed := New(env.config, env.pipeline.engine, env.pipeline.client,
		ingest.NewLoader(zap.NewNop()), nil, nil, nil, zap.NewNop())

	result, err := resumed.Run(context.Background())
	if err != nil {
		t.Fatalf("resume run failed: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("resumed run reprocessed %d calls", result.Processed)
	}
	if atomic.LoadInt32(env.calls) != firstCalls {
		t.Error("resumed run hit the generation service again")
	}
	if got := readOutput(t, env.config.OutputFile); len(got) != 2 {
		t.Errorf("resume lost results: %d", len(got))
	}
}

func TestPipelineDeadLetter(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	result, err := env.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Failed != 2 || result.Processed != 0 {
		t.Fatalf("result = %+v", result)
	}

	data, err := os.ReadFile(env.config.DeadLetterFile)
	if err != nil {
		t.Fatalf("failed to read dead letter file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d dead letter entries, want 2", len(lines))
	}
	var entry deadLetterEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("dead letter entry is not JSON: %v", err)
	}
	if entry.CallID == "" || entry.Error == "" {
		t.Errorf("entry = %+v", entry)
	}

	// Failed calls are checkpointed so the next run does not loop forever.
	resumed := New(env.config, env.pipeline.engine, env.pipeline.client,
		ingest.NewLoader(zap.NewNop()), nil, nil, nil, zap.NewNop())
	second, err := resumed.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Failed != 0 || second.Processed != 0 {
		t.Errorf("second run = %+v", second)
	}
}
