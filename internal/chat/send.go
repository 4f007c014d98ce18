package chat

import (
	"context"
	"strings"
)

// PendingSend is the hand-off between the optimistic phase of a send and its
// network phase.
type PendingSend struct {
	Text           string
	ConversationID string
}

// BeginSend is phase one: it appends the user message and marks the engine
// busy before any network work starts.
func (e *Engine) BeginSend(ctx context.Context, text string) (*PendingSend, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	e.mu.Lock()
	if e.state.Busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.state.Messages = append(e.state.Messages, Message{Role: RoleUser, Text: text})
	e.state.Busy = true
	pending := &PendingSend{Text: text, ConversationID: e.state.ActiveID}
	snapshot := cloneMessages(e.state.Messages)
	e.mu.Unlock()

	e.cache.SaveMessages(ctx, snapshot)
	return pending, nil
}

// CompleteSend is phase two: it posts the message and either reconciles
// against the service's history or appends a local bot reply. The reply is
// also appended when reconciliation finds no history.
func (e *Engine) CompleteSend(ctx context.Context, pending *PendingSend) {
	if pending == nil {
		return
	}
	defer e.release()

	reply, err := e.remote.PostMessage(ctx, pending.Text, pending.ConversationID)
	switch {
	case err != nil:
		e.logger.Error("Send failed",
			"conversation_id", pending.ConversationID,
			"error", err,
		)
		e.appendMessage(ctx, Message{Role: RoleBot, Text: "Error: " + ErrorDetail(err)})
		e.RefreshSummaries(ctx)
	case reply.ConversationID != "":
		e.setActive(ctx, reply.ConversationID)
		e.RefreshSummaries(ctx)
		if !e.Reconcile(ctx, reply.ConversationID) {
			e.appendMessage(ctx, Message{Role: RoleBot, Text: reply.Text})
		}
	default:
		e.logger.Debug("Reply carried no conversation id, appending locally")
		e.appendMessage(ctx, Message{Role: RoleBot, Text: reply.Text})
		e.RefreshSummaries(ctx)
	}
}

// Send runs both phases. It returns ErrEmptyMessage or ErrBusy when the send
// was rejected and nil otherwise, including when the request itself failed.
func (e *Engine) Send(ctx context.Context, text string) error {
	pending, err := e.BeginSend(ctx, text)
	if err != nil {
		return err
	}
	e.CompleteSend(ctx, pending)
	return nil
}

// Reconcile replaces the message list with the service's history for id.
// The optimistic list is kept when the history is unavailable.
func (e *Engine) Reconcile(ctx context.Context, id string) bool {
	history := e.remote.FetchHistory(ctx, id, e.historyLimit)
	if history == nil {
		e.logger.Warn("Reconcile skipped, history unavailable",
			"conversation_id", id,
		)
		return false
	}
	e.replaceMessages(ctx, history)
	return true
}
