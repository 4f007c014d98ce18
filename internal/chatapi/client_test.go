package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatsync/internal/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL+"/", 5*time.Second, nil)
}

func TestFetchHistoryMapsRoles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("conversation_id"); got != "abc123" {
			t.Errorf("unexpected conversation id %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "500" {
			t.Errorf("unexpected limit %q", got)
		}
		if r.Header.Get(requestIDHeader) == "" {
			t.Errorf("expected request id header")
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"role":"user","content":"hi","conversation_id":"abc123"},
			{"id":2,"role":"assistant","content":"hello"},
			{"id":3,"role":"bot","text":"fallback text"},
			"garbage"
		]`))
	})

	got := client.FetchHistory(context.Background(), "abc123", 500)
	want := []chat.Message{
		{Role: chat.RoleUser, Text: "hi"},
		{Role: chat.RoleBot, Text: "hello"},
		{Role: chat.RoleBot, Text: "fallback text"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestFetchHistoryDegradesToNil(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"DB error: locked"}`},
		{"object instead of list", http.StatusOK, `{"messages":[]}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			if got := client.FetchHistory(context.Background(), "x", 10); got != nil {
				t.Fatalf("expected nil, got %+v", got)
			}
		})
	}
}

func TestFetchHistoryEmptyListIsNotNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	got := client.FetchHistory(context.Background(), "x", 10)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestFetchHistoryEmptyIDSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	if got := client.FetchHistory(context.Background(), "  ", 10); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request for empty id")
	}
}

func TestFetchHistoryUnreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second, nil)
	if got := client.FetchHistory(context.Background(), "x", 10); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestFetchConversationSummariesPrecedence(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("unexpected limit %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"conversation_id":"a","id":"ignored","last_message":"hello","count":3,"last_time":"2024-03-05T14:07:09"},
			{"conversationId":"b","lastMessage":"camel","messageCount":7,"lastTime":"2024-03-06T10:00:00Z"},
			{"id":"c","lastMessageExcerpt":"excerpt","message_count":1,"lastActivityTime":"x"},
			{"last_message":"orphan"},
			{"conversation_id":null,"id":"d"}
		]`))
	})

	got := client.FetchConversationSummaries(context.Background(), 50)
	want := []chat.Summary{
		{ID: "a", LastMessageExcerpt: "hello", MessageCount: 3, LastActivity: "2024-03-05T14:07:09"},
		{ID: "b", LastMessageExcerpt: "camel", MessageCount: 7, LastActivity: "2024-03-06T10:00:00Z"},
		{ID: "c", LastMessageExcerpt: "excerpt", MessageCount: 1, LastActivity: "x"},
		{ID: "d"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d summaries, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("summary %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestFetchConversationSummariesCollapsesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`[{"conversation_id":"a"}]`))
	})

	const callers = 5
	var (
		wg      sync.WaitGroup
		results = make([][]chat.Summary, callers)
		started sync.WaitGroup
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i] = client.FetchConversationSummaries(context.Background(), 50)
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one request, got %d", calls.Load())
	}
	for i, got := range results {
		if len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("caller %d: unexpected result %+v", i, got)
		}
	}
	results[0][0].ID = "mutated"
	if results[1][0].ID != "a" {
		t.Fatalf("expected callers to receive independent copies")
	}
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name     string
		convID   string
		response string
		want     chat.Reply
	}{
		{"new conversation", "", `{"reply":"hello","conversation_id":"new-1"}`, chat.Reply{Text: "hello", ConversationID: "new-1"}},
		{"existing", "abc", `{"reply":"again","conversationId":"abc"}`, chat.Reply{Text: "again", ConversationID: "abc"}},
		{"missing reply", "abc", `{"conversation_id":null}`, chat.Reply{Text: "No reply"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/chat" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var body map[string]any
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode body: %v", err)
				}
				if body["message"] != "hi" {
					t.Errorf("unexpected message %v", body["message"])
				}
				id, present := body["conversation_id"]
				if tc.convID == "" && present {
					t.Errorf("expected no conversation id, got %v", id)
				}
				if tc.convID != "" && id != tc.convID {
					t.Errorf("expected conversation id %q, got %v", tc.convID, id)
				}
				_, _ = w.Write([]byte(tc.response))
			})
			got, err := client.PostMessage(context.Background(), "hi", tc.convID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestPostMessageErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", http.StatusInternalServerError, `{"detail":"Model error: quota"}`, "Model error: quota"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"too long"}]}`, "field required; too long"},
		{"plain body", http.StatusBadGateway, "upstream\n  unavailable", "upstream unavailable"},
		{"empty body", http.StatusServiceUnavailable, "", "Service Unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.PostMessage(context.Background(), "hi", "")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, apiErr.Status)
			}
			if got := chat.ErrorDetail(err); got != tc.want {
				t.Fatalf("expected detail %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPostMessageTransportError(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second, nil)
	_, err := client.PostMessage(context.Background(), "hi", "")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("expected non-HTTP error, got %v", apiErr)
	}
	if !strings.Contains(chat.ErrorDetail(err), "chat request failed") {
		t.Fatalf("unexpected detail %q", chat.ErrorDetail(err))
	}
}

func TestClearConversation(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantNil  bool
		wantLen  int
	}{
		{"status only", `{"status":"ok","detail":"deleted 4"}`, true, 0},
		{"inline list", `{"status":"ok","conversations":[{"conversation_id":"z"}]}`, false, 1},
		{"inline empty", `{"conversations":[]}`, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/history/clear" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if got := r.URL.Query().Get("conversation_id"); got != "abc" {
					t.Errorf("unexpected conversation id %q", got)
				}
				_, _ = w.Write([]byte(tc.response))
			})
			result, err := client.ClearConversation(context.Background(), "abc")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (result.Summaries == nil) != tc.wantNil || len(result.Summaries) != tc.wantLen {
				t.Fatalf("unexpected result %#v", result)
			}
		})
	}
}

func TestClearConversationFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"DB error: locked"}`))
	})
	if _, err := client.ClearConversation(context.Background(), "abc"); err == nil {
		t.Fatalf("expected error")
	}
}
