// Package remote is the cloud-side task collection: per-owner records,
// partial updates, batched writes, and live snapshot subscriptions.
package remote

import (
	"context"

	"liquid-tasks/internal/models"
)

// MaxBatchSize is the backend's per-call batch write limit. Callers chunk
// larger uploads.
const MaxBatchSize = 500

// Fields is a partial update, keyed by column name.
type Fields map[string]interface{}

// Store is the remote task store contract. Subscribe delivers the owner's
// full current result set on every change; the caller owns the returned
// unsubscribe and must call it when the identity changes or on shutdown.
type Store interface {
	Subscribe(ownerID string, fn func([]models.Task)) (func(), error)
	Put(ctx context.Context, ownerID string, task models.Task) error
	Update(ctx context.Context, taskID string, fields Fields) error
	Delete(ctx context.Context, taskID string) error
	BatchPut(ctx context.Context, ownerID string, tasks []models.Task) error
}
