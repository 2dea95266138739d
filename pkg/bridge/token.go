package bridge

import "sync"

// Token is a resolve-once readiness signal carrying the Host that became
// ready. Waiters block on Done until the first Resolve.
type Token struct {
	once sync.Once
	done chan struct{}
	host Host
}

// NewToken creates an unresolved Token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Resolve records host and releases every waiter. Only the first call has any
// effect; it reports whether this call was the one that resolved the Token.
func (t *Token) Resolve(host Host) bool {
	resolved := false
	t.once.Do(func() {
		t.host = host
		close(t.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the Token is resolved.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Resolved reports whether Resolve has been called.
func (t *Token) Resolved() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Host returns the resolved Host, or nil before resolution.
func (t *Token) Host() Host {
	if !t.Resolved() {
		return nil
	}
	return t.host
}
