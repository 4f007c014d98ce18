// Package chatapi talks to the conversation service over HTTP. Reads never
// fail: transport errors, non-2xx responses and malformed bodies all decode
// to nil so callers can treat them as "no change".
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatsync/internal/chat"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"golang.org/x/sync/singleflight"
)

const (
	detailLimit     = 240
	maxResponseBody = 8 << 20
	requestIDHeader = "X-Request-ID"
)

var _ chat.Remote = (*Client)(nil)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Op     string
	Status int
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Reason)
}

// Detail is the text shown to the user after a failed send.
func (e *APIError) Detail() string {
	return e.Reason
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	flight  singleflight.Group
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout < time.Second {
		timeout = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "chatapi"),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) FetchHistory(ctx context.Context, conversationID string, limit int) []chat.Message {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil
	}
	query := url.Values{}
	query.Set("conversation_id", conversationID)
	query.Set("limit", strconv.Itoa(limit))

	payload, err := c.do(ctx, "history", http.MethodGet, "/history", query, nil)
	if err != nil {
		c.logger.Warn("History fetch failed", "conversation_id", conversationID, "error", err)
		return nil
	}
	messages := decodeHistory(payload)
	if messages == nil {
		c.logger.Warn("History response is not a list", "conversation_id", conversationID)
	}
	return messages
}

// FetchConversationSummaries collapses concurrent identical fetches into one
// request. Every caller gets its own copy of the result.
func (c *Client) FetchConversationSummaries(ctx context.Context, limit int) []chat.Summary {
	key := "conversations:" + strconv.Itoa(limit)
	result, _, _ := c.flight.Do(key, func() (any, error) {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(limit))
		payload, err := c.do(ctx, "conversations", http.MethodGet, "/conversations", query, nil)
		if err != nil {
			c.logger.Warn("Conversation list fetch failed", "error", err)
			return []chat.Summary(nil), nil
		}
		summaries := decodeSummaries(payload)
		if summaries == nil {
			c.logger.Warn("Conversation list response is not a list")
		}
		return summaries, nil
	})
	shared, _ := result.([]chat.Summary)
	if shared == nil {
		return nil
	}
	out := make([]chat.Summary, len(shared))
	copy(out, shared)
	return out
}

func (c *Client) PostMessage(ctx context.Context, text, conversationID string) (chat.Reply, error) {
	body := map[string]any{"message": text}
	if conversationID != "" {
		body["conversation_id"] = conversationID
	}
	payload, err := c.do(ctx, "chat", http.MethodPost, "/chat", nil, body)
	if err != nil {
		return chat.Reply{}, err
	}
	return decodeReply(payload), nil
}

func (c *Client) ClearConversation(ctx context.Context, conversationID string) (chat.ClearResult, error) {
	query := url.Values{}
	if conversationID != "" {
		query.Set("conversation_id", conversationID)
	}
	payload, err := c.do(ctx, "clear", http.MethodPost, "/history/clear", query, nil)
	if err != nil {
		return chat.ClearResult{}, err
	}
	return decodeClear(payload), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	requestID := uuid.NewString()
	errs := oops.In("chatapi").With("op", op, "request_id", requestID)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errs.Wrapf(err, "encode %s request", op)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errs.Wrapf(err, "build %s request", op)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrapf(err, "%s request failed", op)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errs.Wrapf(err, "read %s response", op)
	}
	c.logger.Debug("Request finished",
		"op", op,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Op:     op,
			Status: resp.StatusCode,
			Reason: failureReason(resp.StatusCode, payload),
		}
	}
	return payload, nil
}

func failureReason(status int, payload []byte) string {
	if detail := decodeDetail(payload); detail != "" {
		return detail
	}
	if compact := compactSingleLine(string(payload), detailLimit); compact != "" {
		return compact
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Request failed"
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	if limit <= 3 {
		return text[:limit]
	}
	return text[:limit-3] + "..."
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	return truncate(compact, limit)
}
