package metrics

import (
	"testing"

	"github.com/indigo-web/reactor/http/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("registered", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		m := New(reg)

		m.OnAccept()
		m.OnAccept()
		m.OnClose()
		m.OnRequest()
		m.OnProtocolError(status.ErrBadChunk)
		m.OnProtocolError(status.ErrBodyTooLarge)
		m.OnProtocolError(status.ErrNoHost)
		m.OnRead(100)
		m.OnWrite(42)

		require.Equal(t, float64(2), testutil.ToFloat64(m.Accepted))
		require.Equal(t, float64(1), testutil.ToFloat64(m.Active))
		require.Equal(t, float64(1), testutil.ToFloat64(m.Requests))
		require.Equal(t, float64(2), testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("400")))
		require.Equal(t, float64(1), testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("413")))
		require.Equal(t, float64(100), testutil.ToFloat64(m.BytesRead))
		require.Equal(t, float64(42), testutil.ToFloat64(m.BytesWritten))

		count, err := testutil.GatherAndCount(reg)
		require.NoError(t, err)
		require.Equal(t, 10, count)
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		var m *Metrics
		require.NotPanics(t, func() {
			m.OnAccept()
			m.OnClose()
			m.OnProtocolError(status.ErrBadRequest)
			m.OnRead(1)
		})
	})
}
