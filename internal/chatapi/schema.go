package chatapi

import (
	"strings"

	"chatsync/internal/chat"

	"github.com/elliotchance/pie/v2"
	"github.com/tidwall/gjson"
)

const defaultReplyText = "No reply"

// Field precedence for every record the service may send. The first key
// present wins.
var (
	summaryIDKeys       = []string{"conversation_id", "conversationId", "id"}
	summaryExcerptKeys  = []string{"last_message", "lastMessage", "lastMessageExcerpt"}
	summaryCountKeys    = []string{"count", "message_count", "messageCount"}
	summaryActivityKeys = []string{"last_time", "lastTime", "lastActivityTime"}
	messageTextKeys     = []string{"content", "text"}
	replyIDKeys         = []string{"conversation_id", "conversationId"}
)

func first(record gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		if value := record.Get(key); value.Exists() && value.Type != gjson.Null {
			return value
		}
	}
	return gjson.Result{}
}

// decodeHistory returns nil unless payload is a JSON array.
func decodeHistory(payload []byte) []chat.Message {
	root, ok := parseArray(payload)
	if !ok {
		return nil
	}
	records := pie.Filter(root.Array(), func(r gjson.Result) bool { return r.IsObject() })
	messages := pie.Map(records, func(r gjson.Result) chat.Message {
		return chat.Message{
			Role: chat.ParseRole(r.Get("role").String()),
			Text: first(r, messageTextKeys).String(),
		}
	})
	if messages == nil {
		return []chat.Message{}
	}
	return messages
}

// decodeSummaries returns nil unless payload is a JSON array. Entries without
// an id are dropped.
func decodeSummaries(payload []byte) []chat.Summary {
	root, ok := parseArray(payload)
	if !ok {
		return nil
	}
	return summariesFrom(root)
}

func summariesFrom(root gjson.Result) []chat.Summary {
	summaries := pie.Map(root.Array(), decodeSummary)
	summaries = pie.Filter(summaries, func(s chat.Summary) bool { return s.ID != "" })
	if summaries == nil {
		return []chat.Summary{}
	}
	return summaries
}

func decodeSummary(r gjson.Result) chat.Summary {
	if !r.IsObject() {
		return chat.Summary{}
	}
	return chat.Summary{
		ID:                 strings.TrimSpace(first(r, summaryIDKeys).String()),
		LastMessageExcerpt: first(r, summaryExcerptKeys).String(),
		MessageCount:       int(first(r, summaryCountKeys).Int()),
		LastActivity:       first(r, summaryActivityKeys).String(),
	}
}

func decodeReply(payload []byte) chat.Reply {
	root := gjson.ParseBytes(payload)
	reply := chat.Reply{Text: defaultReplyText}
	if !root.IsObject() {
		return reply
	}
	if text := root.Get("reply"); text.Exists() && text.Type != gjson.Null {
		reply.Text = text.String()
	}
	reply.ConversationID = strings.TrimSpace(first(root, replyIDKeys).String())
	return reply
}

func decodeClear(payload []byte) chat.ClearResult {
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return chat.ClearResult{}
	}
	list := root.Get("conversations")
	if !list.IsArray() {
		return chat.ClearResult{}
	}
	return chat.ClearResult{Summaries: summariesFrom(list)}
}

// decodeDetail extracts the service's error detail: a string, or the msg
// fields of a validation error list.
func decodeDetail(payload []byte) string {
	if !gjson.ValidBytes(payload) {
		return ""
	}
	detail := gjson.GetBytes(payload, "detail")
	switch {
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.String())
	case detail.IsArray():
		msgs := pie.Map(detail.Array(), func(r gjson.Result) string { return r.Get("msg").String() })
		msgs = pie.Filter(msgs, func(s string) bool { return strings.TrimSpace(s) != "" })
		return strings.Join(msgs, "; ")
	case detail.Exists() && detail.Type != gjson.Null:
		return compactSingleLine(detail.Raw, detailLimit)
	}
	return ""
}

func parseArray(payload []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, false
	}
	root := gjson.ParseBytes(payload)
	return root, root.IsArray()
}
