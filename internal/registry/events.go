package registry

import "price-registry/internal/domain"

// Notifier receives events after a mutation has been committed.
// Publish is called outside the registry lock and must not block.
type Notifier interface {
	Publish(domain.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(domain.Event)

// Publish calls f(e).
func (f NotifierFunc) Publish(e domain.Event) { f(e) }

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

// Publish forwards e to every non-nil notifier.
func (m Multi) Publish(e domain.Event) {
	for _, n := range m {
		if n != nil {
			n.Publish(e)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Publish(domain.Event) {}
