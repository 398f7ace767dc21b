//go:build linux

package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPoller(t *testing.T) {
	p, err := New(16)
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.NoError(t, p.Add(fds[0]))

	t.Run("timeout", func(t *testing.T) {
		events, err := p.Wait(10*time.Millisecond, nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("readable", func(t *testing.T) {
		_, err := unix.Write(fds[1], []byte("hello"))
		require.NoError(t, err)

		events, err := p.Wait(time.Second, nil)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, fds[0], events[0].FD)
		require.True(t, events[0].Readable)
		require.False(t, events[0].Writable)

		// level-triggered: unread data is reported again
		events, err = p.Wait(time.Second, events[:0])
		require.NoError(t, err)
		require.Len(t, events, 1)

		buff := make([]byte, 16)
		n, err := unix.Read(fds[0], buff)
		require.NoError(t, err)
		require.Equal(t, "hello", string(buff[:n]))
	})

	t.Run("writable", func(t *testing.T) {
		require.NoError(t, p.Modify(fds[0], true))
		events, err := p.Wait(time.Second, nil)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.True(t, events[0].Writable)
		require.False(t, events[0].Readable)

		require.NoError(t, p.Modify(fds[0], false))
		events, err = p.Wait(10*time.Millisecond, nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("wakeup", func(t *testing.T) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = p.Wake()
		}()

		events, err := p.Wait(-1, nil)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.True(t, events[0].Wakeup)

		// the notification is consumed
		events, err = p.Wait(10*time.Millisecond, nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("half-closed peer", func(t *testing.T) {
		require.NoError(t, unix.Shutdown(fds[1], unix.SHUT_WR))
		events, err := p.Wait(time.Second, nil)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.True(t, events[0].Readable)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, p.Remove(fds[0]))
		events, err := p.Wait(10*time.Millisecond, nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestWakeAfterClose(t *testing.T) {
	p, err := New(16)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// the eventfd number may already belong to another descriptor
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.NoError(t, p.Wake())
	require.NoError(t, p.Close())

	buff := make([]byte, 8)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
		_, err = unix.Read(fd, buff)
		require.ErrorIs(t, err, unix.EAGAIN)
	}
}
