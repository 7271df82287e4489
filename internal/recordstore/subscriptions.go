package recordstore

import "sync"

// Subscription is a live remote subscription. Unsubscribe must be called.
type Subscription struct {
	id       uint64
	owner    Owner
	stop     func()
	once     sync.Once
	registry *Subscriptions
}

// Owner returns the subscribed owner.
func (s *Subscription) Owner() Owner {
	return s.owner
}

// Unsubscribe releases the subscription. It is safe to call more than once
// but must not be called from the subscription's own callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.stop()
		s.registry.remove(s.id)
	})
}

// Subscriptions tracks the live subscriptions of one session scope.
type Subscriptions struct {
	mu     sync.Mutex
	nextID uint64
	active map[uint64]*Subscription
}

// NewSubscriptions returns an empty registry.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{active: make(map[uint64]*Subscription)}
}

func (r *Subscriptions) add(owner Owner, stop func()) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := &Subscription{id: r.nextID, owner: owner, stop: stop, registry: r}
	r.active[s.id] = s
	return s
}

func (r *Subscriptions) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

// Len returns the number of live subscriptions.
func (r *Subscriptions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// CloseAll releases every live subscription.
func (r *Subscriptions) CloseAll() {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.active))
	for _, s := range r.active {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}
