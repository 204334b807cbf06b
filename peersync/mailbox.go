package peersync

import "sync"

// Mailbox is an unbounded event queue drained into a channel by its own
// goroutine, so a sender never waits on a slow receiver. Transports use it to
// hand events to a subscriber without ever blocking their network reader.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
}

// NewMailbox starts an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	go m.pump()
	return m
}

// Put queues an event. Events put after Close are dropped.
func (m *Mailbox) Put(e Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	m.signal()
}

// Close stops accepting events. Queued events are still delivered before the
// output channel closes, unless Abandon is called.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// Abandon drops everything queued and closes the output channel as soon as
// the pump notices.
func (m *Mailbox) Abandon() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
	m.once.Do(func() { close(m.done) })
}

func (m *Mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mailbox) pump() {
	defer m.once.Do(func() { close(m.done) })
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-m.wake:
			case <-m.done:
				return
			}
			continue
		}
		e := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- e:
		case <-m.done:
			return
		}
	}
}

// Out is the delivery channel. It closes after Close drains or Abandon.
func (m *Mailbox) Out() <-chan Event { return m.out }

// Done closes once the mailbox is abandoned or fully drained.
func (m *Mailbox) Done() <-chan struct{} { return m.done }
