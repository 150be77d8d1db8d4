package reputation

import "sync"

// Quota tracks the remaining call budget for one provider's report path.
// The counter is refreshed opportunistically from provider response
// headers; reset is provider-driven, so once a provider signals exhaustion
// the state stays exhausted until a later successful call says otherwise.
type Quota struct {
	mu        sync.Mutex
	remaining int // -1 means unknown
	exhausted bool
}

// NewQuota returns a quota in the unknown state, which permits calls.
func NewQuota() *Quota {
	return &Quota{remaining: -1}
}

// Available reports whether a call could currently be attempted. It does
// not consume a slot.
func (q *Quota) Available() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.exhausted && q.remaining != 0
}

// Reserve atomically checks the budget and consumes one slot. Under
// concurrent evaluation at most `remaining` callers can win, which is what
// keeps the real provider quota from being exceeded.
func (q *Quota) Reserve() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.exhausted || q.remaining == 0 {
		return false
	}
	if q.remaining > 0 {
		q.remaining--
	}
	return true
}

// Update refreshes the remaining budget from a provider response header
// and clears the exhausted flag: a call that carried a budget succeeded.
func (q *Quota) Update(remaining int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remaining = remaining
	q.exhausted = remaining == 0
}

// MarkExhausted records a provider-signalled exhaustion (HTTP 429).
func (q *Quota) MarkExhausted() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.exhausted = true
	q.remaining = 0
}

// MarkHealthy clears the exhausted flag after a successful call that did
// not carry budget headers.
func (q *Quota) MarkHealthy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.exhausted {
		q.exhausted = false
		q.remaining = -1
	}
}
