// Package redis provides Redis-backed persistence. Deal audit logs are
// Redis lists appended with RPUSH, so concurrent dispatchers add records
// without ever rewriting the log.
package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dealrelay/dealrelay/pkg/persistence"
)

const keyPrefix = "dealrelay"

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client       *goredis.Client
	dealRepo     *DealRepository
	workflowRepo *WorkflowRepository
	catalogRepo  *CatalogRepository
}

// NewPersistence creates a Redis persistence from a redis:// URL.
func NewPersistence(redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(opts)

	return &Persistence{
		client:       client,
		dealRepo:     NewDealRepository(client),
		workflowRepo: NewWorkflowRepository(client),
		catalogRepo:  NewCatalogRepository(client),
	}, nil
}

func (rp *Persistence) DealRepository() persistence.DealRepository {
	return rp.dealRepo
}

func (rp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return rp.workflowRepo
}

func (rp *Persistence) CatalogRepository() persistence.CatalogRepository {
	return rp.catalogRepo
}

// HealthCheck pings the Redis server.
func (rp *Persistence) HealthCheck(ctx context.Context) error {
	return rp.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (rp *Persistence) Close(_ context.Context) error {
	return rp.client.Close()
}
