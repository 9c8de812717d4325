// Package splice moves bytes between two connected sockets through a
// kernel pipe, avoiding any user-space copy.
package splice

import (
	"io"

	"golang.org/x/sys/unix"
)

// chunk bounds how many bytes a single splice call may move.
const chunk = 8192

// Pipe is the relay for one direction of a session. Bytes pulled off the
// source that could not reach the destination stay parked in the pipe and
// are delivered first by the next Transfer.
type Pipe struct {
	r, w   int
	parked int64
}

func NewPipe() (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Pipe{r: fds[0], w: fds[1]}, nil
}

// Transfer moves bytes from src to dst until the source would block. The
// returned count is bytes delivered to dst. Would-block after progress is
// success; would-block with no progress surfaces as unix.EAGAIN; a
// zero-byte source read with nothing delivered is io.EOF.
func (p *Pipe) Transfer(src, dst int) (int64, error) {
	var moved int64
	for {
		for p.parked > 0 {
			n, err := unix.Splice(p.r, nil, dst, nil, chunk, unix.SPLICE_F_NONBLOCK|unix.SPLICE_F_MOVE)
			if err != nil {
				if err == unix.EAGAIN {
					return settle(moved)
				}
				return moved, err
			}
			if n == 0 {
				return moved, io.ErrUnexpectedEOF
			}
			p.parked -= n
			moved += n
		}

		n, err := unix.Splice(src, nil, p.w, nil, chunk, unix.SPLICE_F_NONBLOCK|unix.SPLICE_F_MOVE)
		if err != nil {
			if err == unix.EAGAIN {
				return settle(moved)
			}
			return moved, err
		}
		if n == 0 {
			// Source EOF. Progress already made is reported first; the
			// next call repeats the zero read and returns io.EOF.
			if moved == 0 {
				return 0, io.EOF
			}
			return moved, nil
		}
		p.parked += n
	}
}

func settle(moved int64) (int64, error) {
	if moved == 0 {
		return 0, unix.EAGAIN
	}
	return moved, nil
}

// Close releases the conduit descriptors.
func (p *Pipe) Close() {
	unix.Close(p.r)
	unix.Close(p.w)
}
