package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sys/unix"

	"http-proxy/internal/domain"
	"http-proxy/internal/infrastructure/network"
	"http-proxy/internal/infrastructure/splice"
)

// tunnelEstablished is the fixed reply for CONNECT-style requests.
var tunnelEstablished = []byte("HTTP/1.1 200 Connection established\r\n\r\n")

type ProxyService struct {
	log        *slog.Logger
	loop       domain.EventLoop
	listenerFD int
	registry   *SessionRegistry
	dns        *DNSCache
}

func NewProxyService(loop domain.EventLoop, logger *slog.Logger, resolver domain.Resolver, port int) (*ProxyService, error) {
	lfd, err := network.ListenTCP(port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen tcp: %w", err)
	}

	return &ProxyService{
		log:        logger,
		loop:       loop,
		listenerFD: lfd,
		registry:   NewSessionRegistry(),
		dns:        NewDNSCache(resolver),
	}, nil
}

// Port reports the bound listener port, useful when port 0 was requested.
func (s *ProxyService) Port() (int, error) {
	return network.ListenPort(s.listenerFD)
}

func (s *ProxyService) Start() error {
	s.log.Info("Registering listener in event loop", "listener_fd", s.listenerFD)

	if err := s.loop.Register(s.listenerFD, domain.EventRead); err != nil {
		return err
	}

	s.log.Info("Proxy service is running loop...")
	return s.loop.Run(s)
}

// HandleEvent dispatches one readiness event. Per-session failures close
// that session only; the loop itself never sees an error from here.
func (s *ProxyService) HandleEvent(fd int, event domain.EventType) error {
	if fd == s.listenerFD {
		s.acceptClients()
		return nil
	}

	sess := s.registry.Get(fd)
	if sess == nil {
		return nil
	}

	if event&domain.EventRead != 0 {
		if err := s.handleRead(sess, fd); err != nil && !wouldBlock(err) {
			s.closeSession(sess, err.Error())
			return nil
		}
	}
	if event&domain.EventWrite != 0 {
		if err := s.handleWrite(sess, fd); err != nil && !wouldBlock(err) {
			s.closeSession(sess, err.Error())
			return nil
		}
	}
	if event&domain.EventClosed != 0 {
		s.closeSession(sess, "peer closed")
	}
	return nil
}

// BatchEnd logs per-tick diagnostics once all events of a batch have been
// dispatched.
func (s *ProxyService) BatchEnd() {
	if !s.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.log.Debug("sessions after batch", "count", s.registry.Len())
	s.registry.Each(func(id int, sess *domain.Session) {
		s.log.Debug("remaining session", "identity", id, "session", sess.String())
	})
}

// acceptClients drains the listener until accept would block; with an
// edge-triggered loop a single pass may announce several connections.
func (s *ProxyService) acceptClients() {
	for {
		nfd, sa, err := unix.Accept(s.listenerFD)
		if err != nil {
			if err != unix.EAGAIN {
				s.log.Error("Accept failed", "error", err)
			}
			return
		}

		clientIP := "unknown"
		if sockAddr, ok := sa.(*unix.SockaddrInet4); ok {
			clientIP = net.IP(sockAddr.Addr[:]).String()
		}

		unix.SetNonblock(nfd, true)

		sess := &domain.Session{
			DownFD: nfd,
			State:  domain.StateNegotiating,
		}
		if err := s.loop.Register(nfd, domain.EventRead|domain.EventWrite); err != nil {
			s.log.Error("Register client failed", "fd", nfd, "error", err)
			unix.Close(nfd)
			continue
		}
		s.registry.Insert(nfd, sess)

		s.log.Info("New client accepted", "fd", nfd, "ip", clientIP)
	}
}

func (s *ProxyService) handleRead(sess *domain.Session, fd int) error {
	switch sess.State {
	case domain.StateNegotiating:
		if fd != sess.DownFD || sess.UpFD != 0 {
			// Upstream connect already in flight; leave any extra client
			// bytes in the socket buffer until relaying starts.
			return nil
		}
		return s.negotiate(sess)
	case domain.StateRelaying:
		_, err := s.pipeFrom(sess, fd)
		return err
	}
	return nil
}

func (s *ProxyService) handleWrite(sess *domain.Session, fd int) error {
	if sess.State == domain.StateRelaying {
		// The destination drained; push anything parked toward it.
		_, err := s.pipeTo(sess, fd)
		return err
	}

	if fd == sess.UpFD && !sess.Confirmed {
		done, err := network.ConnectProbe(fd)
		if err != nil {
			return fmt.Errorf("connect %s:%d: %w", sess.Host, sess.Port, err)
		}
		if !done {
			return nil
		}
		sess.Confirmed = true
		if sess.IsTunnel {
			sess.Pending = tunnelEstablished
			sess.PendingFD = sess.DownFD
		} else {
			// Forward the already-read request verbatim; it is never
			// re-issued.
			sess.Pending = sess.HeaderBuf
			sess.PendingFD = sess.UpFD
		}
		s.log.Debug("upstream connected", "session", sess.String())
		return s.flushPending(sess)
	}

	if sess.Confirmed && len(sess.Pending) > 0 && fd == sess.PendingFD {
		return s.flushPending(sess)
	}
	return nil
}

// negotiate reads the request head, resolves the target, and launches the
// non-blocking upstream connect. Incomplete headers leave the session
// waiting for more client bytes.
func (s *ProxyService) negotiate(sess *domain.Session) error {
	if err := s.readHead(sess); err != nil {
		return err
	}

	head, complete, err := parseRequestHead(sess.HeaderBuf)
	if err != nil {
		return fmt.Errorf("parse request head: %w", err)
	}
	if !complete {
		s.log.Debug("request head incomplete", "fd", sess.DownFD, "buffered", len(sess.HeaderBuf))
		return nil
	}

	sess.Host = head.Host
	sess.Port = head.Port
	sess.IsTunnel = head.Tunnel

	ip, ok := s.dns.Query(head.Host)
	if !ok {
		return fmt.Errorf("resolve %s: no address", head.Host)
	}

	ufd, err := network.Connect(ip, head.Port)
	if err != nil {
		return fmt.Errorf("connect %s:%d: %w", ip, head.Port, err)
	}
	if err := s.loop.Register(ufd, domain.EventRead|domain.EventWrite); err != nil {
		unix.Close(ufd)
		return fmt.Errorf("register upstream fd %d: %w", ufd, err)
	}

	sess.UpFD = ufd
	s.registry.Insert(ufd, sess)

	s.log.Info("Connecting to target", "host", head.Host, "ip", ip.String(), "port", head.Port, "up_fd", ufd, "tunnel", head.Tunnel)
	return nil
}

// readHead drains the client socket into the header buffer until the read
// would block.
func (s *ProxyService) readHead(sess *domain.Session) error {
	buf := make([]byte, 1024)
	for {
		n, err := unix.Read(sess.DownFD, buf)
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return fmt.Errorf("read request head: %w", err)
		}
		if n == 0 {
			return io.EOF
		}
		sess.HeaderBuf = append(sess.HeaderBuf, buf[:n]...)
	}
}

// flushPending writes the staged initial bytes. Relaying begins only once
// they are fully delivered.
func (s *ProxyService) flushPending(sess *domain.Session) error {
	for len(sess.Pending) > 0 {
		n, err := unix.Write(sess.PendingFD, sess.Pending)
		if err != nil {
			if err == unix.EAGAIN {
				// A writable event on PendingFD resumes the flush.
				return nil
			}
			return fmt.Errorf("write initial bytes: %w", err)
		}
		sess.Pending = sess.Pending[n:]
	}
	return s.startRelaying(sess)
}

// startRelaying flips the session to Relaying and runs one relay pass in
// both directions, picking up bytes that arrived while the connect was in
// flight (edge-triggered notification will not re-announce them).
func (s *ProxyService) startRelaying(sess *domain.Session) error {
	down2up, err := splice.NewPipe()
	if err != nil {
		return fmt.Errorf("relay conduit: %w", err)
	}
	up2down, err := splice.NewPipe()
	if err != nil {
		down2up.Close()
		return fmt.Errorf("relay conduit: %w", err)
	}
	sess.Down2Up = down2up
	sess.Up2Down = up2down
	sess.Pending = nil
	sess.State = domain.StateRelaying

	s.log.Info("Relaying", "session", sess.String())

	if _, err := s.pipeFrom(sess, sess.DownFD); err != nil && !wouldBlock(err) {
		return err
	}
	if _, err := s.pipeFrom(sess, sess.UpFD); err != nil && !wouldBlock(err) {
		return err
	}
	return nil
}

// pipeFrom relays bytes that became readable on fd toward its peer.
func (s *ProxyService) pipeFrom(sess *domain.Session, fd int) (int64, error) {
	if fd == sess.DownFD {
		return s.transfer(sess, sess.Down2Up, sess.DownFD, sess.UpFD)
	}
	return s.transfer(sess, sess.Up2Down, sess.UpFD, sess.DownFD)
}

// pipeTo relays toward fd after it reported writable, draining bytes parked
// in that direction's conduit.
func (s *ProxyService) pipeTo(sess *domain.Session, fd int) (int64, error) {
	if fd == sess.DownFD {
		return s.transfer(sess, sess.Up2Down, sess.UpFD, sess.DownFD)
	}
	return s.transfer(sess, sess.Down2Up, sess.DownFD, sess.UpFD)
}

func (s *ProxyService) transfer(sess *domain.Session, relay domain.Relay, src, dst int) (int64, error) {
	n, err := relay.Transfer(src, dst)
	if n > 0 {
		s.log.Debug("Data transfer", "bytes", n, "src_fd", src, "dst_fd", dst, "host", sess.Host)
	}
	return n, err
}

// closeSession removes both identities from the registry, deregisters both
// descriptors, and closes them. Safe to call for an already-removed
// session.
func (s *ProxyService) closeSession(sess *domain.Session, reason string) {
	if s.registry.Remove(sess.DownFD) == nil {
		return
	}
	s.log.Info("Closing session", "session", sess.String(), "reason", reason)

	if err := s.loop.Unregister(sess.DownFD); err != nil {
		s.log.Error("Deregister failed", "fd", sess.DownFD, "error", err)
	}
	unix.Close(sess.DownFD)

	if sess.UpFD != 0 {
		if err := s.loop.Unregister(sess.UpFD); err != nil {
			s.log.Error("Deregister failed", "fd", sess.UpFD, "error", err)
		}
		unix.Close(sess.UpFD)
	}

	if sess.Down2Up != nil {
		sess.Down2Up.Close()
	}
	if sess.Up2Down != nil {
		sess.Up2Down.Close()
	}
}

// wouldBlock reports whether err is the benign no-progress outcome of a
// non-blocking operation.
func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
