// Package cache is the local best-effort mirror of the active conversation.
// It keeps the message list and the active conversation id across restarts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"chatsync/internal/chat"
)

// ErrNotFound is returned by a Store when a key has no value.
var ErrNotFound = errors.New("cache: key not found")

const (
	historyKey      = "chat_history"
	conversationKey = "conv_id"
)

// Store is a flat key-value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var _ chat.Cache = (*Cache)(nil)

// Cache adapts a Store to the engine's cache port. Backend failures are
// logged and swallowed; absent or unreadable entries load as nil or "".
type Cache struct {
	store  Store
	prefix string
	logger *slog.Logger
}

func New(store Store, prefix string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		prefix: prefix,
		logger: logger.With("component", "cache"),
	}
}

func (c *Cache) key(name string) string {
	return c.prefix + name
}

func (c *Cache) SaveMessages(ctx context.Context, messages []chat.Message) {
	if messages == nil {
		messages = []chat.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		c.logger.Warn("Encode cached messages failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, c.key(historyKey), data); err != nil {
		c.logger.Debug("Save cached messages failed", "error", err)
	}
}

func (c *Cache) LoadMessages(ctx context.Context) []chat.Message {
	data, err := c.store.Get(ctx, c.key(historyKey))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("Load cached messages failed", "error", err)
		}
		return nil
	}

	var messages []chat.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		c.logger.Warn("Cached messages are corrupt, ignoring", "error", err)
		return nil
	}
	if messages == nil {
		return nil
	}
	for i := range messages {
		messages[i].Role = chat.ParseRole(string(messages[i].Role))
	}
	return messages
}

func (c *Cache) ClearMessages(ctx context.Context) {
	if err := c.store.Delete(ctx, c.key(historyKey)); err != nil {
		c.logger.Debug("Clear cached messages failed", "error", err)
	}
}

func (c *Cache) SaveActiveConversationID(ctx context.Context, id string) {
	if id == "" {
		c.ClearActiveConversationID(ctx)
		return
	}
	if err := c.store.Set(ctx, c.key(conversationKey), []byte(id)); err != nil {
		c.logger.Debug("Save active conversation id failed", "error", err)
	}
}

func (c *Cache) LoadActiveConversationID(ctx context.Context) string {
	data, err := c.store.Get(ctx, c.key(conversationKey))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("Load active conversation id failed", "error", err)
		}
		return ""
	}
	return string(data)
}

func (c *Cache) ClearActiveConversationID(ctx context.Context) {
	if err := c.store.Delete(ctx, c.key(conversationKey)); err != nil {
		c.logger.Debug("Clear active conversation id failed", "error", err)
	}
}
