// Package cmd provides shared construction helpers for the dealrelay
// binaries.
package cmd

import (
	"fmt"
	"strings"

	"github.com/dealrelay/dealrelay/pkg/persistence"
	"github.com/dealrelay/dealrelay/pkg/persistence/file"
	"github.com/dealrelay/dealrelay/pkg/persistence/redis"
)

// NewPersistence builds a persistence layer from a database URL. redis://
// URLs get the Redis implementation; anything else is treated as a file
// root.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "redis://") || strings.HasPrefix(databaseURL, "rediss://") {
		p, err := redis.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis persistence: %w", err)
		}

		return p, nil
	}

	return file.NewPersistence(databaseURL), nil
}
