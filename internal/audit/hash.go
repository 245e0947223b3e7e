package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Hasher computes the chained digest of an event.
type Hasher interface {
	Hash(event Event) string
}

type blake2bHasher struct {
	key []byte
}

// NewBlake2bHasher returns a BLAKE2b-256 hasher. A non-empty key (at most 64
// bytes) turns the digest into a MAC so that the chain cannot be recomputed
// by someone with write access to storage alone.
func NewBlake2bHasher(key []byte) (Hasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("audit: hash key longer than %d bytes", blake2b.Size)
	}
	return &blake2bHasher{key: key}, nil
}

func (h *blake2bHasher) Hash(event Event) string {
	d, _ := blake2b.New256(h.key)

	// json.Marshal sorts map keys, so metadata encodes deterministically.
	meta, _ := json.Marshal(event.Metadata)

	fmt.Fprintf(d, "%s|%s|%s|%s|%s|%s|%s|%s|%d|%s|",
		event.PrevHash,
		event.ID,
		event.Action,
		event.ActorID,
		event.HospitalID,
		event.Resource,
		event.ResourceID,
		event.Result,
		event.CreatedAt.UnixMicro(),
		event.Error,
	)
	d.Write(meta)

	return hex.EncodeToString(d.Sum(nil))
}

// chain links events by writing the previous hash into each new event.
type chain struct {
	mu     sync.Mutex
	hasher Hasher
	last   string
}

// seal fills PrevHash and Hash. commit must be called with the result of
// persisting the event; the chain only advances on success.
func (c *chain) seal(e *Event) (commit func(error)) {
	c.mu.Lock()
	e.PrevHash = c.last
	e.Hash = c.hasher.Hash(*e)
	return func(err error) {
		if err == nil {
			c.last = e.Hash
		}
		c.mu.Unlock()
	}
}

// resume continues an existing chain whose last hash is h.
func (c *chain) resume(h string) {
	c.mu.Lock()
	c.last = h
	c.mu.Unlock()
}

// Verify checks that events, oldest first, form an unbroken chain. The first
// event may link to an earlier event outside the slice.
func Verify(h Hasher, events []Event) error {
	for i, e := range events {
		if i > 0 && e.PrevHash != events[i-1].Hash {
			return fmt.Errorf("%w: event %s does not link to %s", ErrChainBroken, e.ID, events[i-1].ID)
		}
		if got := h.Hash(e); got != e.Hash {
			return fmt.Errorf("%w: event %s hash mismatch", ErrChainBroken, e.ID)
		}
	}
	return nil
}
