// Package store holds the conversation list and the active conversation of
// one agent session. Only the reconciliation engine mutates it; everything
// else reads snapshots or subscribes to its topics.
package store

import (
	"sort"
	"sync"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

// Store keeps exactly one entry per conversation id, ordered most recently
// updated first.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*model.Conversation
	order   []string

	activeID  string
	activeGen uint64
	activeLog []model.Message

	list     *Topic[[]model.Conversation]
	selected *Topic[*model.Conversation]
	messages *Topic[[]model.Message]
	alerts   *Topic[model.Event]
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries:  make(map[string]*model.Conversation),
		list:     NewTopic[[]model.Conversation](nil),
		selected: NewTopic[*model.Conversation](nil),
		messages: NewTopic[[]model.Message](nil),
		alerts:   NewTopic[model.Event](nil),
	}
}

// Conversations is the conversation-list topic.
func (s *Store) Conversations() *Topic[[]model.Conversation] { return s.list }

// ActiveConversation is the selected-conversation topic. Nil means nothing
// is selected.
func (s *Store) ActiveConversation() *Topic[*model.Conversation] { return s.selected }

// ActiveMessages is the active message log topic.
func (s *Store) ActiveMessages() *Topic[[]model.Message] { return s.messages }

// ProviderAlerts is the topic of the latest fulfillment provider event.
func (s *Store) ProviderAlerts() *Topic[model.Event] { return s.alerts }

// Len returns the number of conversations held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.entries[id]
	if !ok {
		return model.Conversation{}, false
	}
	return c.Clone(), true
}

// List returns the conversations passing filter, in store order.
func (s *Store) List(filter model.StatusFilter) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, 0, len(s.order))
	for _, id := range s.order {
		c := s.entries[id]
		if c.Matches(filter) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Update applies fn to the entry for id. When fn returns true the entry
// moves to the head of the ordering. Update reports false if id is unknown.
func (s *Store) Update(id string, fn func(c *model.Conversation) (toHead bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	if !ok {
		return false
	}
	if fn(c) {
		s.moveToHead(id)
		s.raiseHead(c)
	}
	s.publishLocked(id)
	return true
}

// Upsert applies fn to the entry for fresh.ID, or inserts fresh at the head
// when there is none, under one lock. It reports whether an entry existed. A
// nil fn leaves an existing entry untouched.
func (s *Store) Upsert(fresh model.Conversation, fn func(c *model.Conversation) (toHead bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.entries[fresh.ID]; ok {
		if fn == nil {
			return true
		}
		if fn(c) {
			s.moveToHead(fresh.ID)
			s.raiseHead(c)
		}
		s.publishLocked(fresh.ID)
		return true
	}
	entry := fresh.Clone()
	s.entries[fresh.ID] = &entry
	s.order = append([]string{fresh.ID}, s.order...)
	s.raiseHead(&entry)
	s.publishLocked(fresh.ID)
	return false
}

// Merge inserts or updates a batch of conversations, then reorders the list
// by updatedAt. fn merges an incoming value into an existing entry.
func (s *Store) Merge(batch []model.Conversation, fn func(current *model.Conversation, incoming model.Conversation)) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	activeTouched := false
	for _, in := range batch {
		if c, ok := s.entries[in.ID]; ok {
			fn(c, in)
		} else {
			entry := in.Clone()
			s.entries[in.ID] = &entry
			s.order = append(s.order, in.ID)
		}
		if in.ID == s.activeID {
			activeTouched = true
		}
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.entries[s.order[i]].UpdatedAt.After(s.entries[s.order[j]].UpdatedAt)
	})
	s.publishListLocked()
	if activeTouched {
		s.publishSelectedLocked()
	}
}

// Select makes id the active conversation and seeds the active log from the
// entry's cached messages. It returns the selection generation used to
// recognize stale history results.
func (s *Store) Select(id string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	if !ok {
		return 0, false
	}
	s.activeGen++
	s.activeID = id
	s.activeLog = append([]model.Message(nil), c.Messages...)
	s.publishSelectedLocked()
	s.publishMessagesLocked()
	return s.activeGen, true
}

// Deselect clears the active conversation.
func (s *Store) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return
	}
	s.activeGen++
	s.activeID = ""
	s.activeLog = nil
	s.publishSelectedLocked()
	s.publishMessagesLocked()
}

// ActiveID returns the selected conversation id, or "".
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// IsCurrent reports whether id is still selected under generation gen.
func (s *Store) IsCurrent(id string, gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID == id && s.activeGen == gen
}

// Active returns the selected conversation, served from its list entry,
// together with the active message log.
func (s *Store) Active() model.ActiveView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return model.ActiveView{}
	}
	c := s.entries[s.activeID].Clone()
	return model.ActiveView{
		Conversation: &c,
		Messages:     append([]model.Message(nil), s.activeLog...),
	}
}

// UpdateActive applies fn to the active log if id is selected. A non-zero gen
// additionally requires the selection generation to match.
func (s *Store) UpdateActive(id string, gen uint64, fn func(log []model.Message) []model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" || s.activeID != id || (gen != 0 && gen != s.activeGen) {
		return false
	}
	s.activeLog = fn(s.activeLog)
	s.publishMessagesLocked()
	return true
}

// PublishAlert publishes a provider event on the alert topic.
func (s *Store) PublishAlert(ev model.Event) {
	s.alerts.Publish(ev)
}

// Close closes every topic.
func (s *Store) Close() {
	s.list.Close()
	s.selected.Close()
	s.messages.Close()
	s.alerts.Close()
}

func (s *Store) moveToHead(id string) {
	for i, v := range s.order {
		if v == id {
			copy(s.order[1:i+1], s.order[:i])
			s.order[0] = id
			return
		}
	}
}

// raiseHead keeps updatedAt non-increasing along the ordering after c moved
// to the head. The clamp is deliberate: updatedAt is the store's recency key,
// and Merge re-sorts by it, so an entry that just saw activity must never
// carry an older stamp than the entry behind it. The raw message times stay
// on the messages.
func (s *Store) raiseHead(c *model.Conversation) {
	if len(s.order) < 2 {
		return
	}
	next := s.entries[s.order[1]]
	if next.UpdatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = next.UpdatedAt
	}
}

func (s *Store) publishLocked(id string) {
	s.publishListLocked()
	if id == s.activeID {
		s.publishSelectedLocked()
	}
}

func (s *Store) publishListLocked() {
	snapshot := make([]model.Conversation, len(s.order))
	for i, id := range s.order {
		snapshot[i] = s.entries[id].Clone()
	}
	s.list.Publish(snapshot)
	metrics.ConversationsTracked.Set(float64(len(s.order)))
}

func (s *Store) publishSelectedLocked() {
	if s.activeID == "" {
		s.selected.Publish(nil)
		return
	}
	c := s.entries[s.activeID].Clone()
	s.selected.Publish(&c)
}

func (s *Store) publishMessagesLocked() {
	s.messages.Publish(append([]model.Message(nil), s.activeLog...))
}
