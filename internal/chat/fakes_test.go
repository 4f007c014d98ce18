package chat

import (
	"context"
	"errors"
	"sync"
)

type fakeRemote struct {
	mu sync.Mutex

	histories     map[string][]Message
	summaries     []Summary
	reply         Reply
	postErr       error
	clearResult   ClearResult
	clearErr      error
	onPost        func()
	onSummaries   func()
	summaryCalls  int
	historyCalls  int
	postCalls     int
	clearCalls    int
	lastPostText  string
	lastPostConv  string
	lastClearConv string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{histories: map[string][]Message{}}
}

func (f *fakeRemote) FetchHistory(_ context.Context, id string, _ int) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if id == "" {
		return nil
	}
	history, ok := f.histories[id]
	if !ok {
		return nil
	}
	return cloneMessages(history)
}

func (f *fakeRemote) FetchConversationSummaries(_ context.Context, _ int) []Summary {
	f.mu.Lock()
	f.summaryCalls++
	hook := f.onSummaries
	items := f.summaries
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if items == nil {
		return nil
	}
	out := make([]Summary, len(items))
	copy(out, items)
	return out
}

func (f *fakeRemote) PostMessage(_ context.Context, text, id string) (Reply, error) {
	f.mu.Lock()
	f.postCalls++
	f.lastPostText = text
	f.lastPostConv = id
	hook := f.onPost
	reply, err := f.reply, f.postErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return reply, err
}

func (f *fakeRemote) ClearConversation(_ context.Context, id string) (ClearResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	f.lastClearConv = id
	return f.clearResult, f.clearErr
}

type fakeCache struct {
	mu       sync.Mutex
	messages []Message
	hasMsgs  bool
	activeID string
	saves    int
}

func (c *fakeCache) SaveMessages(_ context.Context, messages []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = cloneMessages(messages)
	c.hasMsgs = true
	c.saves++
}

func (c *fakeCache) LoadMessages(_ context.Context) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasMsgs {
		return nil
	}
	return cloneMessages(c.messages)
}

func (c *fakeCache) ClearMessages(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.hasMsgs = false
}

func (c *fakeCache) SaveActiveConversationID(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = id
}

func (c *fakeCache) LoadActiveConversationID(_ context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

func (c *fakeCache) ClearActiveConversationID(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = ""
}

type detailError struct {
	detail string
}

func (e detailError) Error() string  { return "http 500" }
func (e detailError) Detail() string { return e.detail }

var errUnreachable = errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")

func messagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
