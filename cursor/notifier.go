package cursor

import "sync"

// Notifier delivers a zero-payload "more data available" signal to a single
// consumer. A signal raised while nobody is registered is latched and handed
// to the next consumer on registration.
type Notifier struct {
	mu       sync.Mutex
	consumer func()
	reg      uint64
	pending  bool
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Register replaces the current consumer. A latched signal is delivered
// immediately, outside of the notifier lock.
func (n *Notifier) Register(f func()) {
	n.register(f)
}

func (n *Notifier) register(f func()) uint64 {
	n.mu.Lock()
	n.consumer = f
	n.reg++
	reg := n.reg
	deliver := n.pending && f != nil
	if deliver {
		n.pending = false
	}
	n.mu.Unlock()

	if deliver {
		f()
	}
	return reg
}

func (n *Notifier) Unregister() {
	n.mu.Lock()
	n.consumer = nil
	n.mu.Unlock()
}

// Notify signals the consumer or latches the signal if there is none.
func (n *Notifier) Notify() {
	n.mu.Lock()
	f := n.consumer
	if f == nil {
		n.pending = true
	}
	n.mu.Unlock()

	if f != nil {
		f()
	}
}

// Pending reports whether a signal is latched waiting for a consumer.
func (n *Notifier) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

// Subscribe registers a channel consumer. Signals coalesce: the channel holds
// at most one of them.
func (n *Notifier) Subscribe() <-chan struct{} {
	ch, _ := n.Listen()
	return ch
}

// Listen is Subscribe with a cancel func. Cancel only removes this
// subscription, never one registered after it, and latches again a signal
// left unread in the channel.
func (n *Notifier) Listen() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	reg := n.register(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if n.reg == reg {
				n.consumer = nil
			}
			select {
			case <-ch:
				n.pending = true
			default:
			}
		})
	}
	return ch, cancel
}
