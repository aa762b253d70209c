package cart

import "sync"

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
	OpClear  Op = "clear"
)

// Event is broadcast after every successful cart mutation.
type Event struct {
	Key   string
	Op    Op
	Count int
}

type Listener func(Event)

// Notifier fans cart events out to subscribers synchronously. Delivery
// order across subscribers is unspecified.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	next      int
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it.
func (n *Notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.listeners[id] = l
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	ls := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		ls = append(ls, l)
	}
	n.mu.RUnlock()

	for _, l := range ls {
		l(e)
	}
}
