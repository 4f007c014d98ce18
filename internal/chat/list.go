package chat

import "sync"

// ConversationList holds the ordered summaries shown in the sidebar.
// Every write bumps a generation so a slow fetch can tell that a newer list
// landed while it was in flight.
type ConversationList struct {
	mu    sync.RWMutex
	items []Summary
	gen   uint64
}

func (l *ConversationList) Replace(items []Summary) {
	next := make([]Summary, len(items))
	copy(next, items)

	l.mu.Lock()
	l.items = next
	l.gen++
	l.mu.Unlock()
}

// ReplaceIfCurrent writes items only when no other write happened since gen
// was read. It reports whether the list was replaced.
func (l *ConversationList) ReplaceIfCurrent(items []Summary, gen uint64) bool {
	next := make([]Summary, len(items))
	copy(next, items)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	l.items = next
	l.gen++
	return true
}

func (l *ConversationList) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

func (l *ConversationList) Items() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Summary, len(l.items))
	copy(out, l.items)
	return out
}

func (l *ConversationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *ConversationList) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, item := range l.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (l *ConversationList) Find(id string) (Summary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if id != "" && item.ID == id {
			return item, true
		}
	}
	return Summary{}, false
}
