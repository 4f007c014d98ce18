package chat

import (
	"strings"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"user":      RoleUser,
		" User ":    RoleUser,
		"assistant": RoleBot,
		"bot":       RoleBot,
		"system":    RoleBot,
		"":          RoleBot,
	}
	for raw, want := range tests {
		if got := ParseRole(raw); got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSummaryTitle(t *testing.T) {
	long := strings.Repeat("é", 75)
	tests := []struct {
		name    string
		summary Summary
		want    string
	}{
		{"excerpt", Summary{ID: "abc", LastMessageExcerpt: "hello"}, "hello"},
		{"truncated runes", Summary{ID: "abc", LastMessageExcerpt: long}, strings.Repeat("é", 60)},
		{"id fallback", Summary{ID: "0123456789abcdef"}, "Conversation 01234567"},
		{"short id", Summary{ID: "xyz"}, "Conversation xyz"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.summary.Title(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSummaryActivityLabel(t *testing.T) {
	naive := Summary{LastActivity: "2024-03-05T14:07:09.123456"}
	want := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC).Local().Format("02/01/2006, 15:04")
	if got := naive.ActivityLabel(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	zoned := Summary{LastActivity: "2024-03-05T14:07:09Z"}
	if got := zoned.ActivityLabel(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	raw := Summary{LastActivity: "yesterday"}
	if got := raw.ActivityLabel(); got != "yesterday" {
		t.Fatalf("expected raw fallback, got %q", got)
	}
	if got := (Summary{}).ActivityLabel(); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
}

func TestConversationList(t *testing.T) {
	var list ConversationList
	list.Replace([]Summary{{ID: "a"}, {ID: "b"}})
	if list.Len() != 2 || list.IndexOf("b") != 1 || list.IndexOf("") != -1 {
		t.Fatalf("unexpected list state: %+v", list.Items())
	}
	items := list.Items()
	items[0].ID = "mutated"
	if _, ok := list.Find("a"); !ok {
		t.Fatalf("expected Items to return a copy")
	}
	if _, ok := list.Find("missing"); ok {
		t.Fatalf("expected missing id not found")
	}
}

func TestConversationListReplaceIfCurrent(t *testing.T) {
	var list ConversationList
	gen := list.Generation()
	list.Replace([]Summary{{ID: "newer"}})
	if list.ReplaceIfCurrent([]Summary{{ID: "older"}}, gen) {
		t.Fatalf("expected stale write rejected")
	}
	if _, ok := list.Find("newer"); !ok {
		t.Fatalf("expected newer list kept")
	}
	if !list.ReplaceIfCurrent([]Summary{{ID: "next"}}, list.Generation()) {
		t.Fatalf("expected current write accepted")
	}
	if list.Len() != 1 || list.IndexOf("next") != 0 {
		t.Fatalf("unexpected list %+v", list.Items())
	}
}
