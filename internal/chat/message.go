package chat

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ParseRole collapses every remote role except "user" into RoleBot.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleUser)) {
		return RoleUser
	}
	return RoleBot
}

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Summary is the sidebar view of a conversation. It is owned by the remote
// service and never edited locally.
type Summary struct {
	ID                 string `json:"conversation_id"`
	LastMessageExcerpt string `json:"last_message,omitempty"`
	MessageCount       int    `json:"count"`
	LastActivity       string `json:"last_time,omitempty"`
}

const (
	titleMaxRunes  = 60
	titleIDPrefix  = 8
	activityLayout = "02/01/2006, 15:04"
)

func (s Summary) Title() string {
	excerpt := strings.TrimSpace(s.LastMessageExcerpt)
	if excerpt != "" {
		if utf8.RuneCountInString(excerpt) > titleMaxRunes {
			return string([]rune(excerpt)[:titleMaxRunes])
		}
		return excerpt
	}
	id := s.ID
	if len(id) > titleIDPrefix {
		id = id[:titleIDPrefix]
	}
	return "Conversation " + id
}

// ActivityLabel renders LastActivity in local time, or returns the raw value
// when it is not a recognised timestamp.
func (s Summary) ActivityLabel() string {
	raw := strings.TrimSpace(s.LastActivity)
	if raw == "" {
		return ""
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	return parsed.Local().Format(activityLayout)
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC3339 values and the zone-less ISO form the
// history service emits, which is treated as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return parsed, nil
	}
	var lastErr error
	for _, layout := range naiveLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, time.UTC)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

type Reply struct {
	Text           string
	ConversationID string
}

// ClearResult carries the summary list the service may return inline. A nil
// Summaries means none was returned.
type ClearResult struct {
	Summaries []Summary
}

// State is the single mutable core state. An empty ActiveID means no
// conversation has been established yet.
type State struct {
	ActiveID string
	Messages []Message
	Busy     bool
}

func (s State) clone() State {
	out := s
	out.Messages = cloneMessages(s.Messages)
	return out
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
