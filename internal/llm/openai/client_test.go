package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoice-backend/internal/llm"
	"invoice-backend/internal/shared/apperr"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.BaseURL = server.URL + "/api/v1"
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	if opts.Model == "" {
		opts.Model = "qwen-2.5-vl-72b"
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestExtractSendsImagePart(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"vendor_name\":\"Acme\"} "},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}, Options{JSONMode: true})

	out, err := client.Extract(context.Background(), llm.Input{ImageDataURL: "data:image/png;base64,AAAA", FileName: "r.png"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != `{"vendor_name":"Acme"}` {
		t.Fatalf("unexpected content %q", out)
	}

	if got["temperature"] != float64(0) {
		t.Fatalf("expected temperature 0, got %v", got["temperature"])
	}
	if got["max_tokens"] != float64(2000) {
		t.Fatalf("expected max_tokens 2000, got %v", got["max_tokens"])
	}
	if rf, ok := got["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", got["response_format"])
	}
	messages := got["messages"].([]any)
	system := messages[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "ONLY a valid JSON object") {
		t.Fatalf("unexpected system message %v", system)
	}
	parts := messages[1].(map[string]any)["content"].([]any)
	image := parts[1].(map[string]any)
	if image["type"] != "image_url" || image["image_url"].(map[string]any)["url"] != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected image part %v", image)
	}
}

func TestExtractOmitsResponseFormatWhenDisabled(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}, Options{Model: "gpt-5-mini"})

	if _, err := client.Extract(context.Background(), llm.Input{Text: "INVOICE"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, ok := got["response_format"]; ok {
		t.Fatalf("expected response_format to be omitted")
	}
	if _, ok := got["temperature"]; ok {
		t.Fatalf("expected temperature to be omitted for gpt-5 models")
	}
}

func TestExtractFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusBadGateway, body: `upstream down`},
		{name: "provider error body", status: http.StatusBadRequest, body: `{"error":{"message":"bad image","type":"invalid_request_error"}}`},
		{name: "missing choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`},
		{name: "garbage", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, Options{})
			_, err := client.Extract(context.Background(), llm.Input{Text: "x"})
			if !apperr.IsKind(err, apperr.ErrExtractionUnavailable) {
				t.Fatalf("expected extraction unavailable, got %v", err)
			}
		})
	}
}

func TestExtractTimeoutIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}, Options{Timeout: 20 * time.Millisecond})

	_, err := client.Extract(context.Background(), llm.Input{Text: "x"})
	if !apperr.IsKind(err, apperr.ErrExtractionUnavailable) {
		t.Fatalf("expected extraction unavailable, got %v", err)
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(Options{Model: "m"}); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Fatal("expected missing model error")
	}
}
