package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func chatServer(t *testing.T, seen chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL.String() + " " + r.Header.Get("Authorization") + r.Header.Get("api-key")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_OpenAICompatible(t *testing.T) {
	requests := make(chan string, 1)
	srv := chatServer(t, requests)
	p := New(Config{APIKey: "k1", BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
	resp, err := p.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:    "m",
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
	})
	if err != nil || resp.Choices[0].Message.Content != "ok" {
		t.Fatalf("chat: %+v %v", resp, err)
	}
	seen := <-requests
	if !strings.HasPrefix(seen, "/v1/chat/completions") || !strings.Contains(seen, "Bearer k1") {
		t.Fatalf("unexpected request %q", seen)
	}
}

func TestNew_Azure(t *testing.T) {
	requests := make(chan string, 1)
	srv := chatServer(t, requests)
	cfg := Config{APIKey: "k2", BaseURL: srv.URL, AzureAPIVersion: "2024-02-01", HTTPClient: srv.Client()}
	if !cfg.Azure() {
		t.Fatalf("expected azure config")
	}
	p := New(cfg)
	_, err := p.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:    "summarizer",
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	seen := <-requests
	if !strings.Contains(seen, "/openai/deployments/summarizer/chat/completions") || !strings.Contains(seen, "api-version=2024-02-01") || !strings.HasSuffix(seen, "k2") {
		t.Fatalf("unexpected azure request %q", seen)
	}
}
