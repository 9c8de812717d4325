package epoll

import (
	"fmt"
	"math/rand"

	"golang.org/x/sys/unix"

	"http-proxy/internal/domain"
)

type LinuxEventLoop struct {
	epollFD int
}

func New() (*LinuxEventLoop, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &LinuxEventLoop{epollFD: fd}, nil
}

func (l *LinuxEventLoop) Register(fd int, events domain.EventType) error {
	evt := &unix.EpollEvent{
		Events: uint32(events) | unix.EPOLLET | unix.EPOLLRDHUP, // Edge-triggered
		Fd:     int32(fd),
	}
	return unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_ADD, fd, evt)
}

func (l *LinuxEventLoop) Modify(fd int, events domain.EventType) error {
	evt := &unix.EpollEvent{
		Events: uint32(events) | unix.EPOLLET | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_MOD, fd, evt)
}

func (l *LinuxEventLoop) Unregister(fd int) error {
	return unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
}

func (l *LinuxEventLoop) Run(handler domain.EventHandler) error {
	events := make([]unix.EpollEvent, 128)
	for {
		n, err := unix.EpollWait(l.epollFD, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		// Shuffle the batch so one busy descriptor cannot starve the
		// others sharing this tick.
		batch := events[:n]
		rand.Shuffle(len(batch), func(i, j int) {
			batch[i], batch[j] = batch[j], batch[i]
		})

		for i := 0; i < n; i++ {
			fd := int(batch[i].Fd)
			evMask := batch[i].Events

			var domainEv domain.EventType
			if evMask&unix.EPOLLIN != 0 {
				domainEv |= domain.EventRead
			}
			if evMask&unix.EPOLLOUT != 0 {
				domainEv |= domain.EventWrite
			}
			if evMask&unix.EPOLLERR != 0 {
				domainEv |= domain.EventError
			}
			if evMask&unix.EPOLLHUP != 0 {
				domainEv |= domain.EventHangup
			}
			if evMask&unix.EPOLLRDHUP != 0 {
				domainEv |= domain.EventReadClosed
			}

			if err := handler.HandleEvent(fd, domainEv); err != nil {
				fmt.Printf("Error handling fd %d: %v\n", fd, err)
			}
		}

		if be, ok := handler.(domain.BatchEndHandler); ok {
			be.BatchEnd()
		}
	}
}

func (l *LinuxEventLoop) Stop() {
	unix.Close(l.epollFD)
}
