package sqlitestore

import (
	"time"

	"github.com/alekseev-bro/evstore/internal/config"
)

type Config struct {
	Path        string        `env:"EVSTORE_SQLITE_PATH" envDefault:"evstore.db"`
	BusyTimeout time.Duration `env:"EVSTORE_SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
	MaxReaders  int           `env:"EVSTORE_SQLITE_MAX_READERS" envDefault:"16"`
}

func ConfigFromEnv() (Config, error) {
	return config.FromEnv[Config]()
}
