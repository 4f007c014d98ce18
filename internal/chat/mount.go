package chat

import "context"

// Initialize hydrates the engine once per lifetime: summaries first, then the
// cached conversation's remote history, then the cached message list as the
// last tier. ctx is the UI lifetime; once it is cancelled no further state is
// written. Returns false when the engine was already initialized or another
// operation holds busy; in the busy case the one-shot token is not spent.
func (e *Engine) Initialize(ctx context.Context) bool {
	if e.mounted.Load() {
		e.logger.Debug("Initialize skipped, already mounted")
		return false
	}
	if !e.acquire() {
		e.logger.Debug("Initialize skipped, engine busy")
		return false
	}
	defer e.release()
	if !e.mounted.CompareAndSwap(false, true) {
		return false
	}

	gen := e.summaries.Generation()
	if items := e.remote.FetchConversationSummaries(ctx, e.summaryLimit); items != nil {
		if ctx.Err() != nil {
			return true
		}
		e.summaries.ReplaceIfCurrent(items, gen)
	}

	if ctx.Err() != nil {
		return true
	}
	id := e.cache.LoadActiveConversationID(ctx)
	if id != "" {
		history := e.remote.FetchHistory(ctx, id, e.historyLimit)
		if ctx.Err() != nil {
			return true
		}
		e.mu.Lock()
		e.state.ActiveID = id
		e.mu.Unlock()
		if history != nil {
			e.replaceMessages(ctx, history)
			e.logger.Info("Hydrated from remote history",
				"conversation_id", id,
				"messages", len(history),
			)
			return true
		}
		e.logger.Warn("Remote history unavailable, falling back to local cache",
			"conversation_id", id,
		)
	}

	cached := e.cache.LoadMessages(ctx)
	if cached == nil || ctx.Err() != nil {
		return true
	}
	e.mu.Lock()
	e.state.Messages = cloneMessages(cached)
	e.mu.Unlock()
	e.logger.Info("Hydrated from local cache", "messages", len(cached))
	return true
}
