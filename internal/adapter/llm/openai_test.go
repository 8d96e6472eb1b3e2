package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-key", "gpt", nil, time.Second)
	got, err := client.Generate(context.Background(), &Request{
		Role:   RolePerformer,
		System: "you are an agent",
		Prompt: "say hi",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "hi there" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestOpenAIClientGenerateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "", "gpt", nil, time.Second)
	if _, err := client.Generate(context.Background(), &Request{Role: RoleDirector, Prompt: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenAIClientGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","model":"gpt","choices":[]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "", "gpt", nil, time.Second)
	if _, err := client.Generate(context.Background(), &Request{Role: RoleDirector, Prompt: "x"}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestFactoryProviders(t *testing.T) {
	if _, err := New(ProviderConfig{Provider: "mock"}, time.Second); err != nil {
		t.Fatalf("mock provider failed: %v", err)
	}
	if _, err := New(ProviderConfig{Provider: "openai", BaseURL: "http://localhost"}, time.Second); err != nil {
		t.Fatalf("openai provider failed: %v", err)
	}
	if _, err := New(ProviderConfig{Provider: "anthropic", BaseURL: "http://localhost"}, time.Second); err != nil {
		t.Fatalf("anthropic provider failed: %v", err)
	}
	if _, err := New(ProviderConfig{Provider: "litellm"}, time.Second); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
