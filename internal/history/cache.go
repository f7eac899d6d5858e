// Package history keeps a bounded, per-participant conversation history in
// memory.
package history

import (
	"context"
	"sync"
)

const DefaultMaxExchanges = 10

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Entry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// GenerateFunc produces a reply given the participant's prior history. The
// slice is a copy and may be retained.
type GenerateFunc func(ctx context.Context, history []Entry) (string, error)

// Cache maps participant ids to their recent history, capped at 2N entries
// for N exchanges. The map lock only resolves slots; each participant's slot
// has its own lock held for a whole exchange, so one participant's exchanges
// are serialized while different participants proceed independently.
type Cache struct {
	mu           sync.Mutex
	slots        map[string]*slot
	maxExchanges int
}

type slot struct {
	mu      sync.Mutex
	entries []Entry
}

func New(maxExchanges int) *Cache {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}
	return &Cache{
		slots:        make(map[string]*slot),
		maxExchanges: maxExchanges,
	}
}

// MaxEntries is the per-participant bound.
func (c *Cache) MaxEntries() int { return 2 * c.maxExchanges }

func (c *Cache) slot(id string) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[id]
	if !ok {
		s = &slot{}
		c.slots[id] = s
	}
	return s
}

// Exchange runs generate with the participant's history and, on success,
// appends the inbound user text and the reply then trims to the bound. On
// error the history is left untouched.
func (c *Cache) Exchange(ctx context.Context, id, inbound string, generate GenerateFunc) (string, error) {
	s := c.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := make([]Entry, len(s.entries))
	copy(prior, s.entries)

	reply, err := generate(ctx, prior)
	if err != nil {
		return "", err
	}

	s.entries = append(s.entries,
		Entry{Role: RoleUser, Text: inbound},
		Entry{Role: RoleModel, Text: reply},
	)
	if limit := c.MaxEntries(); len(s.entries) > limit {
		trimmed := make([]Entry, limit)
		copy(trimmed, s.entries[len(s.entries)-limit:])
		s.entries = trimmed
	}
	return reply, nil
}

// Snapshot returns a copy of the participant's history.
func (c *Cache) Snapshot(id string) []Entry {
	c.mu.Lock()
	s, ok := c.slots[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Participants returns the number of participants with a slot.
func (c *Cache) Participants() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
