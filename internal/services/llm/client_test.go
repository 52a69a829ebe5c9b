package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ytsummarize/internal/chunker"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/services"
	"ytsummarize/internal/summarize"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": content,
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "demo-model" || req.ResponseFormat.Type != jsonResponseType {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := completionServer(t, "```json\n{\"ok\":true}\n```")
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckMissingKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	err := client.HealthCheck(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
			_, err := client.CompleteJSON(context.Background(), "", "system", "user")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.IsTransient(err); got != tt.transient {
				t.Fatalf("IsTransient = %v, want %v (err=%v)", got, tt.transient, err)
			}
			if !tt.transient && !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected external tool error, got %v", err)
			}
			if calls.Load() != 1 {
				t.Fatalf("expected a single attempt, got %d", calls.Load())
			}
			var statusErr *services.StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Fatalf("expected status error %d, got %v", tt.status, err)
			}
		})
	}
}

func TestClientEmptyContentIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.CompleteJSON(context.Background(), "", "system", "user")
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), `finish_reason="stop"`) {
		t.Fatalf("expected empty-content error to include finish reason, got %v", err)
	}
}

func TestClientPayloadVariants(t *testing.T) {
	tests := []struct {
		name   string
		choice map[string]any
	}{
		{name: "delta", choice: map[string]any{"delta": map[string]any{"content": `{"ok":true}`}}},
		{name: "legacy text", choice: map[string]any{"text": `{"ok":true}`}},
		{name: "tool call", choice: map[string]any{"message": map[string]any{
			"content": "",
			"tool_calls": []any{map[string]any{
				"type":     "function",
				"function": map[string]any{"name": "respond", "arguments": `{"ok":true}`},
			}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{tt.choice}})
			}))
			defer server.Close()
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
			if err := client.HealthCheck(context.Background()); err != nil {
				t.Fatalf("HealthCheck returned error: %v", err)
			}
		})
	}
}

func TestClientRateLimiterHonorsContext(t *testing.T) {
	server := completionServer(t, `{"ok":true}`)
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", RequestsPerMinute: 1})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.CompleteJSON(ctx, "", "system", "user")
	if err == nil {
		t.Fatal("expected the second call to wait past the deadline")
	}
	if services.IsTransient(err) {
		t.Fatalf("rate limit wait should not be transient, got %v", err)
	}
}

func TestExtractChunk(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "caching talk") {
			t.Errorf("chunk text missing from prompt: %+v", req.Messages)
		}
		content := "```json\n" + `{
			"bullets": [{"text": "Caches trade memory for latency", "importance": 9}, {"text": "Unrated point"}],
			"quotes": ["Measure first."],
			"candidate_chapters": [{"start": "02:10", "heading": "Eviction"}],
			"terms": [{"term": "LRU", "definition": "Least recently used"}],
			"action_items": ["Profile before caching"]
		}` + "\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "default-model"})
	result, err := client.ExtractChunk(context.Background(), chunker.Chunk{Index: 4, Text: "the caching talk"}, "override-model")
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if gotModel != "override-model" {
		t.Fatalf("expected per-call model, got %q", gotModel)
	}
	if result.ChunkIndex != 4 {
		t.Fatalf("expected chunk index 4, got %d", result.ChunkIndex)
	}
	if len(result.Bullets) != 2 || result.Bullets[0].Importance != 5 || result.Bullets[1].Importance != 0 {
		t.Fatalf("unexpected bullets %+v", result.Bullets)
	}
	if len(result.Chapters) != 1 || result.Chapters[0].Start != "02:10" {
		t.Fatalf("unexpected chapters %+v", result.Chapters)
	}
	if len(result.Terms) != 1 || result.Terms[0].Definition != "Least recently used" {
		t.Fatalf("unexpected terms %+v", result.Terms)
	}
}

func TestExtractChunkMalformedIsTransient(t *testing.T) {
	server := completionServer(t, "I cannot produce JSON today")
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.ExtractChunk(context.Background(), chunker.Chunk{Text: "words"}, "")
	if !services.IsTransient(err) {
		t.Fatalf("expected transient parse failure, got %v", err)
	}
}

func TestSynthesizeSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		var notes synthesisNotes
		if err := json.Unmarshal([]byte(req.Messages[1].Content), &notes); err != nil {
			t.Errorf("user payload is not JSON: %v", err)
		}
		if notes.Title != "Talk" || len(notes.Notes) != 1 || notes.Draft.TLDR[0] != "draft point" {
			t.Errorf("unexpected notes %+v", notes)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{
				"content": `{"title":"Talk","tldr":["a","b","c"],"key_points":["k"],"tags":["go"]}`,
			}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	got, err := client.SynthesizeSummary(context.Background(), summarize.SynthesisInput{
		Title:   "Talk",
		Results: []summarize.MapResult{{ChunkIndex: 0}},
		Draft:   schema.Summary{TLDR: []string{"draft point"}},
	}, "")
	if err != nil {
		t.Fatalf("SynthesizeSummary: %v", err)
	}
	if len(got.TLDR) != 3 || got.Tags[0] != "go" {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(`Sure! Here it is: {"ok": true} hope that helps`, &out); err != nil || !out.OK {
		t.Fatalf("DecodeLLMJSON = %v, out=%+v", err, out)
	}
	if err := DecodeLLMJSON("   ", &out); err == nil {
		t.Fatal("expected empty payload error")
	}
}

func TestClientAccumulatesUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
			"usage":   map[string]any{"prompt_tokens": 120, "completion_tokens": 7},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	for range 2 {
		if err := client.HealthCheck(context.Background()); err != nil {
			t.Fatalf("HealthCheck: %v", err)
		}
	}
	got := client.Usage()
	if got.Requests != 2 || got.PromptTokens != 240 || got.CompletionTokens != 14 {
		t.Fatalf("unexpected usage %+v", got)
	}
}

func TestFirstJSONValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `note {"a": "}"} trailing {"b": 1}`, want: `{"a": "}"}`},
		{in: `[1, {"x": [2]}] done`, want: `[1, {"x": [2]}]`},
		{in: `{"q": "say \"hi\" {"}`, want: `{"q": "say \"hi\" {"}`},
		{in: `{"open": true`, want: ""},
		{in: `{"bad": ]`, want: ""},
		{in: "no json here", want: ""},
	}
	for _, tt := range tests {
		if got := firstJSONValue(tt.in); got != tt.want {
			t.Errorf("firstJSONValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
