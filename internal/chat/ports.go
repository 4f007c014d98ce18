package chat

import (
	"context"
	"errors"
	"strings"
)

// Remote is the authoritative history service. Fetches never fail: a nil
// result means "no data" and callers must treat it as "no change", not as an
// empty conversation.
type Remote interface {
	FetchHistory(ctx context.Context, conversationID string, limit int) []Message
	FetchConversationSummaries(ctx context.Context, limit int) []Summary
	PostMessage(ctx context.Context, text, conversationID string) (Reply, error)
	ClearConversation(ctx context.Context, conversationID string) (ClearResult, error)
}

// Cache is the local best-effort mirror. Implementations swallow backend
// failures; a missing entry loads as nil or "".
type Cache interface {
	SaveMessages(ctx context.Context, messages []Message)
	LoadMessages(ctx context.Context) []Message
	ClearMessages(ctx context.Context)
	SaveActiveConversationID(ctx context.Context, id string)
	LoadActiveConversationID(ctx context.Context) string
	ClearActiveConversationID(ctx context.Context)
}

var (
	ErrBusy         = errors.New("another conversation operation is in flight")
	ErrEmptyMessage = errors.New("message is empty")
)

const defaultErrorDetail = "Request failed"

// ErrorDetail returns the human-readable text shown inline after a failed
// send. Errors exposing Detail() win over the plain error string.
func ErrorDetail(err error) string {
	if err == nil {
		return defaultErrorDetail
	}
	var detailed interface{ Detail() string }
	if errors.As(err, &detailed) {
		if detail := strings.TrimSpace(detailed.Detail()); detail != "" {
			return detail
		}
	}
	if text := strings.TrimSpace(err.Error()); text != "" {
		return text
	}
	return defaultErrorDetail
}
