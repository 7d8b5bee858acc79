package feed

import (
	"sort"
	"sync"
)

const (
	DefaultStoreCeiling = 500
	DefaultStoreFloor   = 250
)

// Store is the ordered, deduplicated local mirror of recently loaded
// messages. Ordering follows the key (log order), never arrival order.
// Writes come only from the reconciler; readers take snapshots.
type Store struct {
	mu       sync.RWMutex
	messages []*Message // ascending by key
	present  map[string]struct{}
	more     bool
	ceiling  int
	floor    int
}

func NewStore(ceiling, floor int) *Store {
	if ceiling <= 0 {
		ceiling = DefaultStoreCeiling
	}
	if floor <= 0 || floor > ceiling {
		floor = ceiling / 2
	}
	return &Store{
		present: make(map[string]struct{}),
		more:    true,
		ceiling: ceiling,
		floor:   floor,
	}
}

// Insert adds a message at its key position. It is idempotent: a key that is
// already present is a no-op. It returns the message's position in the
// current view, the keys detached by trimming and whether anything changed.
func (s *Store) Insert(msg *Message) (position int, trimmed []string, inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.present[msg.Key]; ok {
		return 0, nil, false
	}

	idx := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].Key >= msg.Key
	})
	s.messages = append(s.messages, nil)
	copy(s.messages[idx+1:], s.messages[idx:])
	s.messages[idx] = msg
	s.present[msg.Key] = struct{}{}

	trimmed = s.trimLocked()

	position = idx - len(trimmed)
	if position < 0 {
		// The inserted message itself was trimmed away.
		return 0, trimmed, false
	}
	return position, trimmed, true
}

// trimLocked drops entries from the front down to the floor once the ceiling
// is exceeded. This only detaches the local projection: nothing downstream
// observes it as a delete, and trimmed keys stay re-fetchable via pagination.
func (s *Store) trimLocked() []string {
	if len(s.messages) <= s.ceiling {
		return nil
	}
	drop := len(s.messages) - s.floor
	trimmed := make([]string, 0, drop)
	for _, msg := range s.messages[:drop] {
		delete(s.present, msg.Key)
		trimmed = append(trimmed, msg.Key)
	}
	s.messages = append([]*Message(nil), s.messages[drop:]...)
	s.more = true
	return trimmed
}

// Update replaces content fields of an existing entry, preserving its key
// and position. Unknown keys are a no-op.
func (s *Store) Update(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexOfLocked(msg.Key)
	if !ok {
		return false
	}
	s.messages[idx] = msg
	return true
}

func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexOfLocked(key)
	if !ok {
		return false
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	delete(s.present, key)
	return true
}

func (s *Store) indexOfLocked(key string) (int, bool) {
	if _, ok := s.present[key]; !ok {
		return 0, false
	}
	idx := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].Key >= key
	})
	if idx < len(s.messages) && s.messages[idx].Key == key {
		return idx, true
	}
	return 0, false
}

func (s *Store) Get(key string) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexOfLocked(key)
	if !ok {
		return nil, false
	}
	return s.messages[idx], true
}

// OldestKey is the pagination cursor: the minimum key currently held.
func (s *Store) OldestKey() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return "", false
	}
	return s.messages[0].Key, true
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot copies the current view in log order for read-only iteration.
func (s *Store) Snapshot() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) MoreAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.more
}

func (s *Store) SetMoreAvailable(more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.more = more
}
