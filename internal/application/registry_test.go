package application

import (
	"testing"

	"github.com/stretchr/testify/require"

	"http-proxy/internal/domain"
)

func TestRegistryDualIdentity(t *testing.T) {
	reg := NewSessionRegistry()
	sess := &domain.Session{DownFD: 10, UpFD: 11, State: domain.StateRelaying}
	reg.Insert(10, sess)
	reg.Insert(11, sess)

	require.Same(t, sess, reg.Get(10))
	require.Same(t, sess, reg.Get(11))
	require.Equal(t, 2, reg.Len())
}

func TestRemoveEitherIdentityRemovesBoth(t *testing.T) {
	for name, id := range map[string]int{"downstream": 10, "upstream": 11} {
		t.Run(name, func(t *testing.T) {
			reg := NewSessionRegistry()
			sess := &domain.Session{DownFD: 10, UpFD: 11, State: domain.StateRelaying}
			reg.Insert(10, sess)
			reg.Insert(11, sess)

			require.Same(t, sess, reg.Remove(id))
			require.Nil(t, reg.Get(10))
			require.Nil(t, reg.Get(11))
			require.Equal(t, 0, reg.Len())
		})
	}
}

func TestRemoveNegotiatingSession(t *testing.T) {
	reg := NewSessionRegistry()
	sess := &domain.Session{DownFD: 10}
	reg.Insert(10, sess)

	require.Same(t, sess, reg.Remove(10))
	require.Equal(t, 0, reg.Len())
}

func TestRemoveUnknownIdentityNoop(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Insert(10, &domain.Session{DownFD: 10})

	require.Nil(t, reg.Remove(99))
	require.Equal(t, 1, reg.Len())
}

func TestEachVisitsAllIdentities(t *testing.T) {
	reg := NewSessionRegistry()
	sess := &domain.Session{DownFD: 10, UpFD: 11}
	reg.Insert(10, sess)
	reg.Insert(11, sess)

	seen := make(map[int]*domain.Session)
	reg.Each(func(id int, s *domain.Session) { seen[id] = s })
	require.Len(t, seen, 2)
	require.Same(t, sess, seen[10])
	require.Same(t, sess, seen[11])
}
