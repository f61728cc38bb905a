package database

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// IDSource selects who mints identifiers. The choice is fixed for the
// adapter's lifetime; mixing database-minted and application-minted ids in
// one table is an error the adapter reports rather than repairs.
type IDSource int

const (
	// IDSourceApp mints a random URL-safe 21-character identifier before
	// insert. This is the default.
	IDSourceApp IDSource = iota
	// IDSourceDatabase omits the id on insert and lets the engine fill it.
	IDSourceDatabase
	// IDSourceCustom delegates to a configured generator function.
	IDSourceCustom
)

// IDConfig is the identifier policy handed to adapters at construction.
type IDConfig struct {
	Source IDSource
	// Generate is required when Source is IDSourceCustom. It receives the
	// model name so generators can prefix per entity.
	Generate func(model string) string
}

// NewID returns the identifier for a fresh row, or ok=false when the
// database mints it and the insert must omit the column.
func (c IDConfig) NewID(model string) (id string, ok bool, err error) {
	switch c.Source {
	case IDSourceDatabase:
		return "", false, nil
	case IDSourceCustom:
		if c.Generate == nil {
			return "", false, fmt.Errorf("id config: custom source without generator")
		}
		return c.Generate(model), true, nil
	default:
		return GenerateID(), true, nil
	}
}

// idAlphabet is the URL-safe alphabet used for application-minted ids.
const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

const idLength = 21

// GenerateID mints a random URL-safe identifier, 21 characters, suitable for
// cookies and URLs without escaping.
func GenerateID() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is no
		// reasonable degraded mode for identifier minting.
		panic(fmt.Sprintf("database: rng unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)&63]
	}
	return string(buf)
}

// UUIDGenerator is a ready-made custom generator for deployments that prefer
// UUIDv4 identifiers.
func UUIDGenerator(string) string {
	return uuid.NewString()
}
