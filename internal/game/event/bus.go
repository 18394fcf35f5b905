// Package event provides typed observer lists used for the lifecycle notifications
// of queues, rosters and attribute stores.
package event

// Subscription identifies one registered handler on a Bus.
type Subscription uint64

type handler[T any] struct {
	id Subscription
	fn func(T)
}

// Bus is an ordered list of handlers for payloads of type T.
// The zero value is ready to use. Bus is not safe for concurrent use; it lives on
// the single simulation thread like the component that owns it.
type Bus[T any] struct {
	next     Subscription
	handlers []handler[T]
}

// Subscribe registers fn and returns its Subscription.
//
// Precondition: fn must not be nil.
// Postcondition: fn is invoked by every later Emit, after all earlier subscribers.
func (b *Bus[T]) Subscribe(fn func(T)) Subscription {
	b.next++
	b.handlers = append(b.handlers, handler[T]{id: b.next, fn: fn})
	return b.next
}

// Unsubscribe removes the handler registered under id. Unknown ids are ignored.
func (b *Bus[T]) Unsubscribe(id Subscription) {
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to every handler in subscription order.
// Handlers added or removed during Emit take effect on the next Emit.
func (b *Bus[T]) Emit(payload T) {
	hs := b.handlers
	for _, h := range hs {
		h.fn(payload)
	}
}

// Len returns the number of registered handlers.
func (b *Bus[T]) Len() int { return len(b.handlers) }
