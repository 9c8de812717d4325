package application

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestHeadIncomplete(t *testing.T) {
	for _, buf := range []string{
		"",
		"GET http://exam",
		"GET http://example.com/ HTTP/1.1\r\n",
		"GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n",
	} {
		_, complete, err := parseRequestHead([]byte(buf))
		require.NoError(t, err, "buf %q", buf)
		require.False(t, complete, "buf %q", buf)
	}
}

func TestParseRequestHeadPlainHTTP(t *testing.T) {
	head, complete, err := parseRequestHead([]byte("GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, "example.com", head.Host)
	require.Equal(t, 80, head.Port)
	require.False(t, head.Tunnel)
}

func TestParseRequestHeadConnectTunnel(t *testing.T) {
	head, complete, err := parseRequestHead([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, "example.com", head.Host)
	require.Equal(t, 443, head.Port)
	require.True(t, head.Tunnel)
}

func TestParseRequestHeadExplicitPort(t *testing.T) {
	head, complete, err := parseRequestHead([]byte("GET http://example.com:8080/path HTTP/1.1\r\nHost: example.com:8080\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, "example.com", head.Host)
	require.Equal(t, 8080, head.Port)
	require.False(t, head.Tunnel)
}

func TestParseRequestHeadOriginFormFallsBackToHost(t *testing.T) {
	head, complete, err := parseRequestHead([]byte("GET / HTTP/1.1\r\nHost: fallback.example:8081\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, "fallback.example", head.Host)
	require.Equal(t, 8081, head.Port)
}

func TestParseRequestHeadLastHostWins(t *testing.T) {
	head, complete, err := parseRequestHead([]byte("GET / HTTP/1.1\r\nHost: first.example\r\nHost: second.example\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, "second.example", head.Host)
}

func TestParseRequestHeadHostIsCaseSensitive(t *testing.T) {
	_, _, err := parseRequestHead([]byte("GET http://example.com/ HTTP/1.1\r\nhost: example.com\r\n\r\n"))
	require.Error(t, err)
}

func TestParseRequestHeadMissingHost(t *testing.T) {
	_, _, err := parseRequestHead([]byte("GET http://example.com/ HTTP/1.1\r\n\r\n"))
	require.Error(t, err)
}

func TestParseRequestHeadMalformedHeader(t *testing.T) {
	_, _, err := parseRequestHead([]byte("GET http://example.com/ HTTP/1.1\r\nbogus\r\n\r\n"))
	require.Error(t, err)
}

func TestParseRequestHeadSplitAcrossReads(t *testing.T) {
	full := []byte("GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n")
	var buf []byte
	for len(buf) < len(full) {
		end := len(buf) + 7
		if end > len(full) {
			end = len(full)
		}
		buf = append(buf, full[len(buf):end]...)

		head, complete, err := parseRequestHead(buf)
		require.NoError(t, err)
		if len(buf) < len(full) {
			require.False(t, complete, "complete after %d of %d bytes", len(buf), len(full))
			continue
		}
		require.True(t, complete)
		require.Equal(t, "example.com", head.Host)
		require.Equal(t, 80, head.Port)
	}
}
