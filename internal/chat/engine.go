package chat

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	defaultHistoryLimit = 500
	defaultSummaryLimit = 50
)

// Engine owns the active conversation state and reconciles it against the
// remote history and the local cache. Every user-triggered operation
// check-and-sets the busy flag and is rejected with ErrBusy while another one
// is outstanding.
type Engine struct {
	remote Remote
	cache  Cache
	logger *slog.Logger

	historyLimit int
	summaryLimit int

	mu        sync.Mutex
	state     State
	summaries ConversationList

	mounted atomic.Bool
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

func WithSummaryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.summaryLimit = limit
		}
	}
}

func NewEngine(remote Remote, cache Cache, opts ...Option) *Engine {
	e := &Engine{
		remote:       remote,
		cache:        cache,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		historyLimit: defaultHistoryLimit,
		summaryLimit: defaultSummaryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Busy
}

func (e *Engine) Summaries() *ConversationList {
	return &e.summaries
}

// OpenConversation switches to id and hydrates it from the remote history.
// An empty id is a no-op reserved for the "new conversation" affordance.
func (e *Engine) OpenConversation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if !e.acquire() {
		return ErrBusy
	}
	defer e.release()

	e.setActive(ctx, id)
	history := e.remote.FetchHistory(ctx, id, e.historyLimit)
	if history == nil {
		e.logger.Warn("Conversation history unavailable, keeping current messages",
			"conversation_id", id,
		)
		return nil
	}
	e.replaceMessages(ctx, history)
	e.logger.Debug("Conversation opened",
		"conversation_id", id,
		"messages", len(history),
	)
	return nil
}

// Clear asks the service to drop the active conversation and resets local
// state whatever the outcome.
func (e *Engine) Clear(ctx context.Context) error {
	if !e.acquire() {
		return ErrBusy
	}
	defer e.release()

	id := e.Snapshot().ActiveID
	if id == "" {
		e.resetLocal(ctx)
		e.RefreshSummaries(ctx)
		return nil
	}

	result, err := e.remote.ClearConversation(ctx, id)
	e.resetLocal(ctx)
	if err != nil {
		e.logger.Warn("Clear conversation failed, local state reset anyway",
			"conversation_id", id,
			"error", err,
		)
		e.RefreshSummaries(ctx)
		return nil
	}

	if result.Summaries != nil {
		e.summaries.Replace(result.Summaries)
		return nil
	}
	e.RefreshSummaries(ctx)
	return nil
}

// RefreshSummaries replaces the sidebar list when the service returned data.
// It is not busy-guarded; a result that resolves after a newer write to the
// list (such as the inline list returned by Clear) is dropped.
func (e *Engine) RefreshSummaries(ctx context.Context) bool {
	gen := e.summaries.Generation()
	items := e.remote.FetchConversationSummaries(ctx, e.summaryLimit)
	if items == nil {
		return false
	}
	if !e.summaries.ReplaceIfCurrent(items, gen) {
		e.logger.Debug("Dropped stale conversation list", "items", len(items))
	}
	return true
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Busy {
		return false
	}
	e.state.Busy = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.state.Busy = false
	e.mu.Unlock()
}

func (e *Engine) setActive(ctx context.Context, id string) {
	e.cache.SaveActiveConversationID(ctx, id)
	e.mu.Lock()
	e.state.ActiveID = id
	e.mu.Unlock()
}

func (e *Engine) replaceMessages(ctx context.Context, messages []Message) {
	e.mu.Lock()
	e.state.Messages = cloneMessages(messages)
	snapshot := cloneMessages(e.state.Messages)
	e.mu.Unlock()
	e.cache.SaveMessages(ctx, snapshot)
}

func (e *Engine) appendMessage(ctx context.Context, msg Message) {
	e.mu.Lock()
	e.state.Messages = append(e.state.Messages, msg)
	snapshot := cloneMessages(e.state.Messages)
	e.mu.Unlock()
	e.cache.SaveMessages(ctx, snapshot)
}

func (e *Engine) resetLocal(ctx context.Context) {
	e.mu.Lock()
	e.state.Messages = []Message{}
	e.state.ActiveID = ""
	e.mu.Unlock()
	e.cache.ClearMessages(ctx)
	e.cache.ClearActiveConversationID(ctx)
}
