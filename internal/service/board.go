package service

import (
	"sync"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/store"
)

// Board keeps the latest suggestion set per conversation. A set generated
// for an older message never replaces one for a newer message.
type Board struct {
	mu      sync.Mutex
	sets    map[string]model.SuggestionSet
	applied map[string]uint64
	issued  map[string]uint64
	updates *store.Topic[model.SuggestionSet]
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{
		sets:    make(map[string]model.SuggestionSet),
		applied: make(map[string]uint64),
		issued:  make(map[string]uint64),
		updates: store.NewTopic(model.SuggestionSet{}),
	}
}

// Get returns the latest set for a conversation.
func (b *Board) Get(conversationID string) (model.SuggestionSet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.sets[conversationID]
	return set, ok
}

// Updates streams every accepted set. The first value is the zero set.
func (b *Board) Updates() *store.Topic[model.SuggestionSet] {
	return b.updates
}

// Clear drops the set of a closed conversation. Sets still being generated
// for messages that arrived before the close are rejected.
func (b *Board) Clear(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sets, conversationID)
	b.applied[conversationID] = b.issued[conversationID] + 1
}

// Close ends every update subscription.
func (b *Board) Close() {
	b.updates.Close()
}

func (b *Board) reserve(conversationID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued[conversationID]++
	return b.issued[conversationID]
}

func (b *Board) put(set model.SuggestionSet, seq uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < b.applied[set.ConversationID] {
		return false
	}
	b.applied[set.ConversationID] = seq
	b.sets[set.ConversationID] = set
	b.updates.Publish(set)
	return true
}
