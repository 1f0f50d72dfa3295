// Package store persists the latest observation per city.
//
// Every backend keys rows by the provider-canonical city name and overwrites
// on upsert (last write wins). Rows for different cities are independent; no
// backend offers cross-city transactions.
package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
)

// ErrNotFound is returned by Get when no observation exists for the city.
var ErrNotFound = errors.New("observation not found")

// Consistency selects the read guarantee for Get.
type Consistency int

const (
	// Eventual may serve a read that misses a very recent write.
	Eventual Consistency = iota
	// Strong reads reflect every acknowledged write.
	Strong
)

func (c Consistency) String() string {
	if c == Strong {
		return "strong"
	}
	return "eventual"
}

// TableInfo describes the backing table for operators.
type TableInfo struct {
	Driver    string `json:"driver"`
	Table     string `json:"table"`
	Status    string `json:"status"`
	KeySchema string `json:"key_schema"`
	ItemCount int64  `json:"item_count"`
}

// Store is the observation store contract shared by all backends.
type Store interface {
	// Upsert writes or overwrites the observation for city, stamped with the store's clock.
	Upsert(ctx context.Context, city string, temperature float64) error

	// Get returns the observation for city or ErrNotFound.
	Get(ctx context.Context, city string, consistency Consistency) (domain.Observation, error)

	// Delete removes the observation for city. Deleting a missing city is not an error.
	Delete(ctx context.Context, city string) error

	// Describe reports the table's status and size.
	Describe(ctx context.Context) (TableInfo, error)

	Close() error
}

const (
	statusActive = "ACTIVE"
	keySchema    = "city"
)

var unsafeIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// sanitizeIdent turns an environment table name such as "city-test" into a
// bare SQL identifier ("city_test").
func sanitizeIdent(name string) string {
	return unsafeIdent.ReplaceAllString(name, "_")
}
