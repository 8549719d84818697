// Package natsconn opens NATS connections for the NATS backed store and bus.
package natsconn

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alekseev-bro/evstore/internal/config"
)

type CloseFunc = func()

// Connector opens a connection and returns the function that releases it.
type Connector func() (nc *nats.Conn, release CloseFunc, err error)

type Config struct {
	URL           string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Name          string        `env:"NATS_CLIENT_NAME" envDefault:"evstore"`
	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"3"`
	Timeout       time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"2s"`
}

func ConfigFromEnv() (Config, error) {
	return config.FromEnv[Config]()
}

// Connect returns a Connector that dials a new connection on every call.
func (cfg Config) Connect() Connector {
	return func() (*nats.Conn, CloseFunc, error) {
		nc, err := nats.Connect(
			cfg.URL,
			nats.Name(cfg.Name),
			nats.MaxReconnects(cfg.MaxReconnects),
			nats.Timeout(cfg.Timeout),
		)
		if err != nil {
			return nil, nil, err
		}
		return nc, nc.Close, nil
	}
}

func ConnectURL(url string) Connector {
	return Config{URL: url, Name: "evstore", MaxReconnects: 3, Timeout: nats.DefaultTimeout}.Connect()
}

// Shared hands out leases on a single connection opened through connect.
// The connection is released with the last lease and dialed again by the
// next call.
func Shared(connect Connector) Connector {
	s := &shared{connect: connect}
	return s.lease
}

type shared struct {
	mu      sync.Mutex
	connect Connector
	nc      *nats.Conn
	release CloseFunc
	leases  int
}

func (s *shared) lease() (*nats.Conn, CloseFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc == nil {
		nc, release, err := s.connect()
		if err != nil {
			return nil, nil, err
		}
		s.nc, s.release = nc, release
	}
	s.leases++
	return s.nc, sync.OnceFunc(s.unlease), nil
}

func (s *shared) unlease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases--
	if s.leases > 0 {
		return
	}
	s.release()
	s.nc, s.release = nil, nil
}
