//go:build linux

package reactor

import (
	"bufio"
	"io"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/headers"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/httptest"
	httpserver "github.com/indigo-web/reactor/internal/server/http"
	"github.com/indigo-web/reactor/internal/server/metrics"
	"github.com/indigo-web/reactor/internal/server/tcp"
	"github.com/indigo-web/reactor/router/simple"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const bigBodySize = 4 * 1024 * 1024

func echoServer(cfg *config.Config) *httpserver.Server {
	return httpserver.NewServer(cfg, simple.New(func(request *http.Request) *http.Response {
		if request.Target == "/big" {
			return http.String(strings.Repeat("a", bigBodySize))
		}

		return http.NewResponse().
			Header("X-Target", request.Target).
			Bytes(request.Body)
	}, nil))
}

type testServer struct {
	reactor *Reactor
	addr    string
	metrics *metrics.Metrics
	done    chan error
}

func startServer(t *testing.T, cfg *config.Config) *testServer {
	l, err := tcp.Listen("127.0.0.1:0", cfg.NET.ListenBacklog)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	r, err := New(cfg, echoServer(cfg), zerolog.Nop(), m, []*tcp.Listener{l})
	require.NoError(t, err)

	s := &testServer{
		reactor: r,
		addr:    l.Addr().String(),
		metrics: m,
		done:    make(chan error, 1),
	}

	go func() {
		s.done <- r.Run()
	}()

	t.Cleanup(func() {
		_ = r.Stop()
		select {
		case err := <-s.done:
			require.ErrorIs(t, err, status.ErrShutdown)
		case <-time.After(5 * time.Second):
			t.Error("reactor didn't stop")
		}
	})

	return s
}

func (s *testServer) dial(t *testing.T) net.Conn {
	conn, err := net.Dial("tcp", s.addr)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func readResponse(t *testing.T, r *bufio.Reader, method string) (*stdhttp.Response, string) {
	stdreq, err := stdhttp.NewRequest(method, "/", nil)
	require.NoError(t, err)
	resp, err := stdhttp.ReadResponse(r, stdreq)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func requireClosed(t *testing.T, r *bufio.Reader) {
	_, err := r.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestReactor(t *testing.T) {
	s := startServer(t, config.Default())

	t.Run("keep-alive", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		for i := range 5 {
			body := strings.Repeat("x", i)
			_, err := conn.Write([]byte(
				"POST /echo HTTP/1.1\r\nHost: localhost\r\nContent-Length: " +
					strconv.Itoa(i) + "\r\n\r\n" + body,
			))
			require.NoError(t, err)

			resp, respBody := readResponse(t, reader, stdhttp.MethodPost)
			require.Equal(t, 200, resp.StatusCode)
			require.Equal(t, "/echo", resp.Header.Get("X-Target"))
			require.Equal(t, body, respBody)
		}
	})

	t.Run("pipelining", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte(
			"GET /first HTTP/1.1\r\nHost: a\r\n\r\n" +
				"POST /second HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n0\r\n\r\n" +
				"GET /third HTTP/1.1\r\nHost: a\r\n\r\n",
		))
		require.NoError(t, err)

		for _, want := range []string{"/first", "/second", "/third"} {
			resp, _ := readResponse(t, reader, stdhttp.MethodGet)
			require.Equal(t, want, resp.Header.Get("X-Target"))
		}
	})

	t.Run("fragmented", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)
		request := "POST /frag HTTP/1.1\r\nHost: a\r\nContent-Length: 13\r\n\r\nHello, world!"

		for i := 0; i < len(request); i += 7 {
			_, err := conn.Write([]byte(request[i:min(i+7, len(request))]))
			require.NoError(t, err)
			time.Sleep(time.Millisecond)
		}

		_, body := readResponse(t, reader, stdhttp.MethodPost)
		require.Equal(t, "Hello, world!", body)
	})

	t.Run("big chunked request", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)
		payload := []byte(strings.Repeat("abcdefgh", 16*1024))

		request := httptest.Request(&http.Request{
			Method:        "POST",
			Target:        "/upload",
			Headers:       headers.New().Add("Host", "localhost"),
			Body:          payload,
			ContentLength: -1,
			Chunked:       true,
		}, 1000)
		_, err := conn.Write(request)
		require.NoError(t, err)

		resp, body := readResponse(t, reader, stdhttp.MethodPost)
		require.Equal(t, 200, resp.StatusCode)
		require.Equal(t, "/upload", resp.Header.Get("X-Target"))
		require.Equal(t, string(payload), body)
	})

	t.Run("big responses are written entirely", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte(
			"GET /big HTTP/1.1\r\nHost: a\r\n\r\nGET /big HTTP/1.1\r\nHost: a\r\n\r\nGET /small HTTP/1.1\r\nHost: a\r\n\r\n",
		))
		require.NoError(t, err)

		// let the server fill the socket buffers up
		time.Sleep(50 * time.Millisecond)

		for range 2 {
			resp, body := readResponse(t, reader, stdhttp.MethodGet)
			require.Equal(t, 200, resp.StatusCode)
			require.Equal(t, bigBodySize, len(body))
		}

		resp, _ := readResponse(t, reader, stdhttp.MethodGet)
		require.Equal(t, "/small", resp.Header.Get("X-Target"))
	})

	t.Run("HEAD", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("HEAD /big HTTP/1.1\r\nHost: a\r\n\r\nGET /next HTTP/1.1\r\nHost: a\r\n\r\n"))
		require.NoError(t, err)

		resp, body := readResponse(t, reader, stdhttp.MethodHead)
		require.Equal(t, int64(bigBodySize), resp.ContentLength)
		require.Empty(t, body)

		resp, _ = readResponse(t, reader, stdhttp.MethodGet)
		require.Equal(t, "/next", resp.Header.Get("X-Target"))
	})

	t.Run("connection close", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: a\r\nConnection: close\r\n\r\nGET / HTTP/1.1\r\nHost: a\r\n\r\n"))
		require.NoError(t, err)

		resp, _ := readResponse(t, reader, stdhttp.MethodGet)
		require.True(t, resp.Close)
		requireClosed(t, reader)
	})

	t.Run("protocol errors", func(t *testing.T) {
		for _, tc := range []struct {
			Name    string
			Request string
			Code    int
		}{
			{"old version", "GET / HTTP/1.0\r\nHost: a\r\n\r\n", 501},
			{"no host", "GET / HTTP/1.1\r\n\r\n", 400},
			{"length required", "POST / HTTP/1.1\r\nHost: a\r\n\r\n", 411},
			{"conflicting framing", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 4\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n0\r\n\r\n", 400},
			{"duplicate content length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 4\r\nContent-Length: 4\r\n\r\nWiki", 400},
			{"bad chunk", "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n", 400},
			{"unsupported coding", "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: gzip, chunked\r\n\r\n", 501},
		} {
			t.Run(tc.Name, func(t *testing.T) {
				conn := s.dial(t)
				reader := bufio.NewReader(conn)

				_, err := conn.Write([]byte(tc.Request))
				require.NoError(t, err)

				resp, _ := readResponse(t, reader, stdhttp.MethodGet)
				require.Equal(t, tc.Code, resp.StatusCode)
				require.True(t, resp.Close)
				requireClosed(t, reader)
			})
		}
	})

	t.Run("EOF mid-body", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 10\r\n\r\nabc"))
		require.NoError(t, err)
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())

		resp, _ := readResponse(t, reader, stdhttp.MethodPost)
		require.Equal(t, 400, resp.StatusCode)
		requireClosed(t, reader)
	})

	t.Run("EOF mid-head", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHo"))
		require.NoError(t, err)
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())
		requireClosed(t, reader)
	})

	t.Run("metrics", func(t *testing.T) {
		require.Positive(t, testutil.ToFloat64(s.metrics.Accepted))
		require.Positive(t, testutil.ToFloat64(s.metrics.Requests))
		require.Positive(t, testutil.ToFloat64(s.metrics.ProtocolErrors.WithLabelValues("400")))
	})
}

func TestResourceLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Headers.MaxSpace = 128
	cfg.Body.MaxSize = 16
	s := startServer(t, cfg)

	t.Run("headers section", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: a\r\nUser-Agent: " + strings.Repeat("a", 200)))
		require.NoError(t, err)

		resp, _ := readResponse(t, reader, stdhttp.MethodGet)
		require.Equal(t, 431, resp.StatusCode)
		requireClosed(t, reader)
	})

	t.Run("body", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 17\r\n\r\n"))
		require.NoError(t, err)

		resp, _ := readResponse(t, reader, stdhttp.MethodPost)
		require.Equal(t, 413, resp.StatusCode)
		requireClosed(t, reader)
	})
}

func TestIdleTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.NET.ReadTimeout = 100 * time.Millisecond
	cfg.NET.IdleSweepPeriod = 10 * time.Millisecond
	s := startServer(t, cfg)

	t.Run("silent", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)
		requireClosed(t, reader)
	})

	t.Run("partial request", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		_, err := conn.Write([]byte("GET / HTTP/1.1\r\n"))
		require.NoError(t, err)

		resp, _ := readResponse(t, reader, stdhttp.MethodGet)
		require.Equal(t, 408, resp.StatusCode)
		requireClosed(t, reader)
		require.Positive(t, testutil.ToFloat64(s.metrics.IdleTimeouts))
	})

	t.Run("active connection survives", func(t *testing.T) {
		conn := s.dial(t)
		reader := bufio.NewReader(conn)

		for range 5 {
			time.Sleep(50 * time.Millisecond)
			_, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: a\r\n\r\n"))
			require.NoError(t, err)
			resp, _ := readResponse(t, reader, stdhttp.MethodGet)
			require.Equal(t, 200, resp.StatusCode)
		}
	})
}

func TestListenerRebuild(t *testing.T) {
	cfg := config.Default()
	l, err := tcp.Listen("127.0.0.1:0", cfg.NET.ListenBacklog)
	require.NoError(t, err)
	addr := l.Addr().String()

	r, err := New(cfg, echoServer(cfg), zerolog.Nop(), nil, []*tcp.Listener{l})
	require.NoError(t, err)

	r.rebuild(l)
	require.Len(t, r.Addrs(), 1)
	require.Equal(t, addr, r.Addrs()[0].String())

	done := make(chan error, 1)
	go func() {
		done <- r.Run()
	}()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /rebuilt HTTP/1.1\r\nHost: a\r\n\r\n"))
	require.NoError(t, err)
	resp, _ := readResponse(t, bufio.NewReader(conn), stdhttp.MethodGet)
	require.Equal(t, "/rebuilt", resp.Header.Get("X-Target"))

	require.NoError(t, r.Stop())
	require.ErrorIs(t, <-done, status.ErrShutdown)
}

// runDetached runs the reactor and returns a function stopping it, which also guarantees
// the loop is down by the time it returns.
func runDetached(t *testing.T, r *Reactor) (stop func()) {
	done := make(chan error, 1)
	go func() {
		done <- r.Run()
	}()

	return func() {
		require.NoError(t, r.Stop())
		select {
		case err := <-done:
			require.ErrorIs(t, err, status.ErrShutdown)
		case <-time.After(5 * time.Second):
			t.Fatal("reactor didn't stop")
		}
	}
}

// requestEventually retries until the request to the address is served.
func requestEventually(t *testing.T, addr, target string) {
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return false
		}
		defer conn.Close()

		_ = conn.SetDeadline(time.Now().Add(time.Second))
		if _, err = conn.Write([]byte("GET " + target + " HTTP/1.1\r\nHost: a\r\n\r\n")); err != nil {
			return false
		}

		resp, err := stdhttp.ReadResponse(bufio.NewReader(conn), nil)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()

		return resp.Header.Get("X-Target") == target
	}, 5*time.Second, 20*time.Millisecond)
}

func TestListenerRecovery(t *testing.T) {
	cfg := config.Default()
	cfg.NET.ReadTimeout = 0
	cfg.NET.IdleSweepPeriod = 10 * time.Millisecond

	t.Run("failed rebuild is retried", func(t *testing.T) {
		l, err := tcp.Listen("127.0.0.1:0", cfg.NET.ListenBacklog)
		require.NoError(t, err)
		addr := l.Addr().String()

		m := metrics.New(prometheus.NewRegistry())
		r, err := New(cfg, echoServer(cfg), zerolog.Nop(), m, []*tcp.Listener{l})
		require.NoError(t, err)

		// occupy the address, so the first rebuild can't bind it
		require.NoError(t, l.Close())
		blocker, err := net.Listen("tcp", addr)
		require.NoError(t, err)

		r.rebuild(l)
		require.Len(t, r.broken, 1)
		require.Empty(t, r.listeners)
		require.Len(t, r.Addrs(), 1)
		require.Equal(t, addr, r.Addrs()[0].String())
		require.Zero(t, testutil.ToFloat64(m.Rebuilds))

		require.NoError(t, blocker.Close())
		stop := runDetached(t, r)
		requestEventually(t, addr, "/recovered")
		stop()

		require.Empty(t, r.broken)
		require.Equal(t, float64(1), testutil.ToFloat64(m.Rebuilds))
	})

	t.Run("paused listener is resumed", func(t *testing.T) {
		l, err := tcp.Listen("127.0.0.1:0", cfg.NET.ListenBacklog)
		require.NoError(t, err)
		addr := l.Addr().String()

		r, err := New(cfg, echoServer(cfg), zerolog.Nop(), nil, []*tcp.Listener{l})
		require.NoError(t, err)

		r.pause(l)
		require.Len(t, r.paused, 1)
		require.True(t, r.dormant())
		require.Equal(t, cfg.NET.IdleSweepPeriod, r.timeout())

		stop := runDetached(t, r)
		requestEventually(t, addr, "/resumed")
		stop()

		require.Empty(t, r.paused)
	})

	t.Run("no periodic work", func(t *testing.T) {
		r, err := New(cfg, echoServer(cfg), zerolog.Nop(), nil, nil)
		require.NoError(t, err)
		require.False(t, r.dormant())
		require.Equal(t, time.Duration(-1), r.timeout())
		require.NoError(t, r.poller.Close())
	})
}

func TestStopBeforeRun(t *testing.T) {
	cfg := config.Default()
	r, err := New(cfg, echoServer(cfg), zerolog.Nop(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, r.Stop())
	require.ErrorIs(t, r.Run(), status.ErrShutdown)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Add(3, &Entry{})
	reg.Add(4, &Entry{})
	require.Equal(t, 2, reg.Len())

	_, found := reg.Remove(3)
	require.True(t, found)
	_, found = reg.Remove(3)
	require.False(t, found)

	for fd := range reg.All() {
		reg.Remove(fd)
	}

	require.Zero(t, reg.Len())
}
