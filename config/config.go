package config

import (
	"time"
)

type (
	HeadersNumber struct {
		Default, Maximal int
	}
)

type (
	URI struct {
		// MaxLength limits the request target. Longer targets are rejected with
		// 414 Request URI Too Long.
		MaxLength int
	}

	Headers struct {
		// Number is responsible for headers storage size.
		// Default value is an initial capacity of the headers storage.
		// Maximal value is maximum number of header lines allowed to be presented
		Number HeadersNumber
		// MaxSpace limits the amount of bytes a connection may accumulate while still
		// awaiting the end of the headers section. Exceeding it is fatal for the connection.
		MaxSpace int
	}

	Body struct {
		// MaxSize describes the maximal size of a framed body in bytes, including the
		// chunked encoding overhead if any. Exceeding it results in 413 Request Entity Too Large.
		MaxSize int64
		// MaxChunkExtLength limits the length of chunk extensions, which are otherwise ignored.
		MaxChunkExtLength int
	}

	NET struct {
		// ReadBufferSize is the maximal amount of bytes read from a single descriptor
		// per loop iteration.
		ReadBufferSize int
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed. Zero disables it, leaving the
		// poll wait unbounded while all the listeners are healthy.
		ReadTimeout time.Duration
		// IdleSweepPeriod controls how often idle connections are looked for. It also paces
		// retries of listeners that failed to accept or to be rebuilt. Non-positive values
		// fall back to a second.
		IdleSweepPeriod time.Duration
		// ListenBacklog is passed to listen(2).
		ListenBacklog int
	}

	Reactor struct {
		// MaxEvents is the number of readiness events fetched by a single wait.
		MaxEvents int
		// ConnectionIDLength is the length of random connection identifiers used in logs.
		ConnectionIDLength int
	}
)

// Config holds settings used across various parts of the server core, mainly restrictions,
// limitations and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI     URI
	Headers Headers
	Body    Body
	NET     NET
	Reactor Reactor
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		URI: URI{
			// most web-entities limit it to 4-8kb.
			MaxLength: 8 * 1024,
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 50,
			},
			MaxSpace: 16 * 1024,
		},
		Body: Body{
			MaxSize:           8 * 1024 * 1024,
			MaxChunkExtLength: 1024,
		},
		NET: NET{
			ReadBufferSize:  4 * 1024,
			ReadTimeout:     90 * time.Second,
			IdleSweepPeriod: time.Second,
			ListenBacklog:   1024,
		},
		Reactor: Reactor{
			MaxEvents:          256,
			ConnectionIDLength: 8,
		},
	}
}
