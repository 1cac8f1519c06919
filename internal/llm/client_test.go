package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:        baseURL,
		APIKeyEnv:      "TEST_LLM_KEY",
		Model:          "llama-3.1-8b-instant",
		Temperature:    0,
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		RequestsPerMin: 6000,
	}
}

func completionBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")
	if _, err := NewClient(testConfig("http://localhost"), zap.NewNop()); err == nil {
		t.Fatal("expected error when API key env is unset")
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("sends masked transcript and parses JSON", func(t *testing.T) {
		t.Setenv("TEST_LLM_KEY", "secret")

		var gotReq chatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
				t.Errorf("unexpected auth header %q", auth)
			}
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			fmt.Fprint(w, completionBody(`{"category":"billing","summary":"[PERSON_1] asked about a charge","confidence":0.9}`))
		}))
		defer server.Close()

		client, err := NewClient(testConfig(server.URL), zap.NewNop())
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		analysis, err := client.Analyze(context.Background(), "Hi [PERSON_1], about [CREDIT_CARD_1]")
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}

		if analysis["category"] != "billing" {
			t.Errorf("category = %v", analysis["category"])
		}
		if analysis["summary"] != "[PERSON_1] asked about a charge" {
			t.Errorf("placeholders must survive verbatim: %v", analysis["summary"])
		}

		if gotReq.Model != "llama-3.1-8b-instant" {
			t.Errorf("model = %s", gotReq.Model)
		}
		if gotReq.Temperature != 0 {
			t.Errorf("temperature = %f, want 0", gotReq.Temperature)
		}
		if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
			t.Error("response_format json_object not requested")
		}
		if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "Hi [PERSON_1], about [CREDIT_CARD_1]" {
			t.Errorf("masked transcript not forwarded as-is: %+v", gotReq.Messages)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Setenv("TEST_LLM_KEY", "secret")

		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				http.Error(w, "upstream busy", http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, completionBody(`{"category":"general"}`))
		}))
		defer server.Close()

		client, err := NewClient(testConfig(server.URL), zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		analysis, err := client.Analyze(context.Background(), "text")
		if err != nil {
			t.Fatalf("analyze failed after retries: %v", err)
		}
		if analysis["category"] != "general" {
			t.Errorf("category = %v", analysis["category"])
		}
		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Setenv("TEST_LLM_KEY", "secret")

		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer server.Close()

		client, err := NewClient(testConfig(server.URL), zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		if _, err := client.Analyze(context.Background(), "text"); err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("rejects non-JSON model output", func(t *testing.T) {
		t.Setenv("TEST_LLM_KEY", "secret")

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, completionBody("Sure! Here is the analysis:"))
		}))
		defer server.Close()

		cfg := testConfig(server.URL)
		cfg.MaxRetries = 1
		client, err := NewClient(cfg, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		if _, err := client.Analyze(context.Background(), "text"); err == nil {
			t.Fatal("expected error for non-JSON content")
		}
	})
}
