package domain

import "net"

// EventType values are the corresponding epoll bits so the event loop can
// pass interest sets through without translation.
type EventType uint32

const (
	EventRead       EventType = 0x1    // EPOLLIN
	EventWrite      EventType = 0x4    // EPOLLOUT
	EventError      EventType = 0x8    // EPOLLERR
	EventHangup     EventType = 0x10   // EPOLLHUP
	EventReadClosed EventType = 0x2000 // EPOLLRDHUP
)

// EventClosed covers every flavor of peer or local closure.
const EventClosed = EventError | EventHangup | EventReadClosed

type EventHandler interface {
	HandleEvent(fd int, event EventType) error
}

// BatchEndHandler is implemented by handlers that want a callback after
// each dispatched readiness batch, for per-tick diagnostics.
type BatchEndHandler interface {
	BatchEnd()
}

type EventLoop interface {
	Register(fd int, events EventType) error
	Modify(fd int, events EventType) error
	Unregister(fd int) error
	Run(handler EventHandler) error
	Stop()
}

// Resolver is the blocking external lookup collaborator. A failed lookup
// and an empty answer are the same thing to callers: no address.
type Resolver interface {
	Lookup(host string) ([]net.IP, error)
}

// Relay moves bytes between two connected sockets. Implementations may park
// bytes in an internal conduit when the destination blocks; parked bytes are
// delivered by the next Transfer toward the same destination and counted
// only once they reach it.
type Relay interface {
	Transfer(srcFD, dstFD int) (int64, error)
	Close()
}
