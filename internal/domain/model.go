package domain

import "fmt"

type State int

const (
	StateNegotiating State = iota // reading the client's request head
	StateRelaying                 // both sockets connected, piping bytes
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateRelaying:
		return "relaying"
	}
	return "unknown"
}

// Session couples one client connection with its (eventual) upstream
// connection. All fields are owned by the reactor goroutine; there is no
// locking because there is no other accessor.
type Session struct {
	DownFD int // client-facing descriptor, immutable after accept
	UpFD   int // target-facing descriptor, 0 until a connect is in flight

	State     State
	Confirmed bool // upstream connect has completed

	HeaderBuf []byte // accumulated request head
	IsTunnel  bool   // CONNECT-style target (":443")
	Host      string
	Port      int

	// Bytes that must reach PendingFD before relaying starts: the tunnel
	// banner for CONNECT, the buffered request head for plain HTTP.
	Pending   []byte
	PendingFD int

	Down2Up Relay
	Up2Down Relay
}

func (s *Session) String() string {
	return fmt.Sprintf("down_fd=%d up_fd=%d host=%s state=%s", s.DownFD, s.UpFD, s.Host, s.State)
}

// OtherFD returns the identity paired with fd, or 0 if the session has no
// second identity yet.
func (s *Session) OtherFD(fd int) int {
	switch fd {
	case s.DownFD:
		return s.UpFD
	case s.UpFD:
		return s.DownFD
	}
	return 0
}
