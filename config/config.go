package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type (
	URI struct {
		// MaxLength limits the request line (method, target and protocol
		// altogether). Overflowing it results in 414 URI Too Long.
		MaxLength int `env:"URI_MAX_LENGTH"`
	}

	Headers struct {
		// MaxSpace limits the amount of memory occupied by the header block,
		// names and values altogether. Overflowing it results in 431 Request
		// Header Fields Too Large.
		MaxSpace int `env:"HEADERS_MAX_SPACE"`
		// Prealloc is the initial number of seats in the headers storage.
		Prealloc int `env:"HEADERS_PREALLOC"`
	}

	Body struct {
		// MaxSize caps the total number of body bytes accepted by the conduit
		// per request, no matter whether the body is sized or chunked.
		MaxSize int64 `env:"BODY_MAX_SIZE"`
		// ReadTimeout is how long a blocked body read waits for the next
		// piece before giving up.
		ReadTimeout time.Duration `env:"BODY_READ_TIMEOUT"`
	}

	NET struct {
		// ReadBufferSize is a size of the buffer in bytes which will be used
		// to read from the socket.
		ReadBufferSize int `env:"NET_READ_BUFFER_SIZE"`
		// ReadTimeout controls the maximal lifetime of IDLE connections. If
		// no data was received in this period of time, the connection is
		// closed.
		ReadTimeout time.Duration `env:"NET_READ_TIMEOUT"`
	}
)

// Config holds settings used across various parts of ember, mainly
// restrictions, limitations and pre-allocations.
//
// Always modify defaults (returned via Default()) instead of initializing
// the struct manually, as zero limits reject everything.
type Config struct {
	URI     URI
	Headers Headers
	Body    Body
	NET     NET
}

// Default returns a well-balanced default config.
func Default() *Config {
	return &Config{
		URI: URI{
			// most web entities limit the request line to 4-8kb, being
			// tolerant here costs nothing
			MaxLength: 16 * 1024,
		},
		Headers: Headers{
			MaxSpace: 16 * 1024,
			Prealloc: 10,
		},
		Body: Body{
			MaxSize:     512 * 1024 * 1024,
			ReadTimeout: 2 * time.Minute,
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
			ReadTimeout:    90 * time.Second,
		},
	}
}

// FromEnv overlays the defaults with EMBER_-prefixed environment variables,
// e.g. EMBER_BODY_MAX_SIZE or EMBER_NET_READ_TIMEOUT.
func FromEnv() (*Config, error) {
	cfg := Default()

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "EMBER_"}); err != nil {
		return nil, errors.Wrap(err, "parsing config from environment")
	}

	return cfg, nil
}
