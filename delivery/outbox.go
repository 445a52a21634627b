package delivery

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coolboyler/md2word/document"
)

const defaultOutboxTTL = 10 * time.Minute

type outboxEntry struct {
	artifact Artifact
	created  time.Time
}

// Outbox holds artifacts until a client fetches them. Each artifact can be
// taken exactly once; untaken ones are dropped by Sweep after the TTL.
type Outbox struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]outboxEntry
}

// NewOutbox creates an outbox. ttl <= 0 selects the 10 minute default.
func NewOutbox(ttl time.Duration) *Outbox {
	if ttl <= 0 {
		ttl = defaultOutboxTTL
	}
	return &Outbox{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]outboxEntry),
	}
}

// Put stores an artifact and returns its retrieval token.
func (o *Outbox) Put(a Artifact) string {
	token := uuid.NewString()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[token] = outboxEntry{artifact: a, created: o.now()}
	return token
}

// Take returns the artifact for token and forgets it.
func (o *Outbox) Take(token string) (Artifact, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.items[token]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	delete(o.items, token)
	if o.now().Sub(e.created) > o.ttl {
		return Artifact{}, ErrNotFound
	}
	return e.artifact, nil
}

// Has reports whether token is still waiting to be taken.
func (o *Outbox) Has(token string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.items[token]
	return ok && o.now().Sub(e.created) <= o.ttl
}

// Sweep drops expired artifacts and returns how many were removed.
func (o *Outbox) Sweep() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	now := o.now()
	for token, e := range o.items {
		if now.Sub(e.created) > o.ttl {
			delete(o.items, token)
			n++
		}
	}
	return n
}

// Len returns the number of stored artifacts.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Slot returns a Deliverer that files artifacts into the outbox and remembers
// the most recent token, one slot per editor session.
func (o *Outbox) Slot() *Slot {
	return &Slot{outbox: o}
}

// Slot is a per-session view of an Outbox.
type Slot struct {
	outbox *Outbox

	mu    sync.Mutex
	token string
}

func (s *Slot) Deliver(payload document.Payload, filename, mediaType string) error {
	if err := checkFilename(filename); err != nil {
		return err
	}
	token := s.outbox.Put(Artifact{
		Filename:  filename,
		MediaType: mediaType,
		Data:      []byte(payload),
	})

	s.mu.Lock()
	prev := s.token
	s.token = token
	s.mu.Unlock()

	// a newer export supersedes an unfetched one
	if prev != "" {
		_, _ = s.outbox.Take(prev)
	}
	return nil
}

// Pending returns the token of an export not yet downloaded, or "".
func (s *Slot) Pending() string {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" || !s.outbox.Has(token) {
		return ""
	}
	return token
}
