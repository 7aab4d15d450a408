package storage

import (
	"fmt"
)

// FactoryConfig selects and configures a storage backend.
type FactoryConfig struct {
	Type string // "sqlite" or "postgres"

	// SQLite
	Path string

	// PostgreSQL
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// Opener is implemented by backend packages and registered here to avoid an
// import cycle between the interface package and its adapters.
type Opener func(cfg FactoryConfig) (Storage, error)

var openers = map[string]Opener{}

// RegisterOpener registers a backend opener under a type name.
func RegisterOpener(name string, opener Opener) {
	openers[name] = opener
}

// Open creates the storage backend named by cfg.Type.
func Open(cfg FactoryConfig) (Storage, error) {
	name := cfg.Type
	if name == "postgresql" {
		name = "postgres"
	}

	opener, ok := openers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	return opener(cfg)
}
