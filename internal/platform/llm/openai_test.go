package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeChatServer imitates the chat completions endpoint, answering every
// request with the given content.
func fakeChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := fakeChatServer(t, `{"question":"Does it itch?"}`)
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini", srv.URL+"/v1", 5*time.Second)
	out, err := client.Complete(context.Background(), "", "generate a question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"question":"Does it itch?"}` {
		t.Errorf("unexpected content: %q", out)
	}
}

func TestOpenAIClient_EmptyResponse(t *testing.T) {
	srv := fakeChatServer(t, "")
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini", srv.URL+"/v1", 5*time.Second)
	_, err := client.Complete(context.Background(), "", "anything")
	if err != ErrEmptyResponse {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini", srv.URL+"/v1", 50*time.Millisecond)
	_, err := client.Complete(context.Background(), "", "anything")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestOpenAIClient_CompleteWithImage(t *testing.T) {
	srv := fakeChatServer(t, "Visible circular rash on forearm, approx 3cm.")
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini", srv.URL+"/v1", 5*time.Second)
	out, err := client.CompleteWithImage(context.Background(),
		"Describe clinically relevant findings.", "data:image/jpeg;base64,AAAA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Error("expected insight text")
	}
}
