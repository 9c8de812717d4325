package application

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// maxHeaderLines bounds how many header fields are scanned.
const maxHeaderLines = 64

var headTerminator = []byte("\r\n\r\n")

// requestHead is what negotiation needs from the client's request block.
type requestHead struct {
	Host   string
	Port   int
	Tunnel bool
}

// parseRequestHead inspects the accumulated request bytes. complete=false
// means the terminating blank line has not arrived yet, which is an
// expected state, not an error. Once the block is complete, a malformed
// head or a missing Host field is an error.
func parseRequestHead(buf []byte) (requestHead, bool, error) {
	var head requestHead
	if !bytes.Contains(buf, headTerminator) {
		return head, false, nil
	}

	nl := bytes.IndexByte(buf, '\n')
	line := strings.TrimRight(string(buf[:nl]), "\r")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return head, false, fmt.Errorf("malformed request line %q", line)
	}
	target := fields[1]
	head.Tunnel = strings.HasSuffix(target, ":443")

	hostHdr, err := lastHostHeader(buf[nl+1:])
	if err != nil {
		return head, false, err
	}

	host, port, err := splitTarget(target)
	if err != nil {
		// Origin-form target ("GET / ..."); fall back to the Host field.
		host, port, err = splitTarget(hostHdr)
		if err != nil {
			return head, false, err
		}
	}
	head.Host = host
	head.Port = port
	return head, true, nil
}

// splitTarget strips a scheme prefix and any path from a request target and
// separates host from port, defaulting the port to 80.
func splitTarget(target string) (string, int, error) {
	if i := strings.Index(target, "://"); i >= 0 {
		target = target[i+3:]
	}
	if i := strings.IndexByte(target, '/'); i >= 0 {
		target = target[:i]
	}
	host, portStr, hasPort := strings.Cut(target, ":")
	if host == "" {
		return "", 0, fmt.Errorf("no host in target %q", target)
	}
	if !hasPort {
		return host, 80, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("bad port in target %q", target)
	}
	return host, port, nil
}

// lastHostHeader scans Name: Value lines for the final case-sensitive
// "Host" field. Duplicate Host headers favor the last occurrence.
func lastHostHeader(rest []byte) (string, error) {
	var host string
	found := false
	lines := 0
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimRight(string(rest[:nl]), "\r")
		rest = rest[nl+1:]
		if line == "" {
			break
		}
		if lines++; lines > maxHeaderLines {
			return "", fmt.Errorf("more than %d header lines", maxHeaderLines)
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return "", fmt.Errorf("malformed header line %q", line)
		}
		if name == "Host" {
			host = strings.TrimSpace(value)
			found = true
		}
	}
	if !found {
		return "", errors.New("missing Host header")
	}
	return host, nil
}
