package messaging

import (
	"sync"

	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
)

// pendingReplies tracks in-flight request-reply waits by correlation id. Each
// waiter is registered before its request is published and removed exactly
// once, whether it is resolved or abandoned, so a reply arriving after a
// timeout finds no channel and is discarded.
type pendingReplies struct {
	mu      sync.Mutex
	waiters map[string]chan contracts.Reply
}

func newPendingReplies() *pendingReplies {
	return &pendingReplies{
		waiters: make(map[string]chan contracts.Reply),
	}
}

func (p *pendingReplies) register(correlationID string) <-chan contracts.Reply {
	ch := make(chan contracts.Reply, 1)

	p.mu.Lock()
	p.waiters[correlationID] = ch
	p.mu.Unlock()

	return ch
}

// resolve delivers a reply to its waiter. It reports false when no waiter is
// registered, which covers late replies and duplicates.
func (p *pendingReplies) resolve(correlationID string, reply contracts.Reply) bool {
	p.mu.Lock()
	ch, ok := p.waiters[correlationID]
	if ok {
		delete(p.waiters, correlationID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	ch <- reply
	return true
}

// cancel abandons a wait after a timeout or context cancellation.
func (p *pendingReplies) cancel(correlationID string) {
	p.mu.Lock()
	delete(p.waiters, correlationID)
	p.mu.Unlock()
}

func (p *pendingReplies) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
