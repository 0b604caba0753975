package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"liquid-tasks/internal/cache"
	"liquid-tasks/internal/models"
)

const (
	changeChannel = "liquid:tasks:changed"
	listCacheTTL  = 5 * time.Minute
)

// changeEvent is the cross-instance change signal. Instance lets a node skip
// its own publications; it already emitted locally.
type changeEvent struct {
	Instance string `json:"instance"`
	OwnerID  string `json:"owner_id"`
}

// GormStore is the Postgres-backed task store. Every committed write
// re-queries the owner's collection and pushes the full snapshot to local
// subscribers; with a Redis client attached, writes from other instances
// arrive through pub/sub and re-emit here too.
type GormStore struct {
	db       *gorm.DB
	cache    cache.Cache
	rdb      *redis.Client
	hub      *hub
	instance string
	cancel   context.CancelFunc
}

func NewGormStore(db *gorm.DB, c cache.Cache, rdb *redis.Client) *GormStore {
	s := &GormStore{
		db:       db,
		cache:    c,
		rdb:      rdb,
		hub:      newHub(),
		instance: uuid.Must(uuid.NewV4()).String(),
	}
	if rdb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.listen(ctx)
	}
	return s
}

func (s *GormStore) Subscribe(ownerID string, fn func([]models.Task)) (func(), error) {
	if ownerID == "" {
		return func() {}, nil
	}
	remove := s.hub.add(ownerID, fn)

	// Deliver the initial result set off the caller's goroutine, matching
	// how later change snapshots arrive.
	go func() {
		tasks, err := s.listTasks(context.Background(), ownerID)
		if err != nil {
			log.Printf("⚠️  Initial snapshot for owner %s failed: %v", ownerID, err)
			return
		}
		fn(tasks)
	}()

	return remove, nil
}

func (s *GormStore) Put(ctx context.Context, ownerID string, task models.Task) error {
	if ownerID == "" {
		return errors.New("owner id is required")
	}
	task.OwnerID = ownerID
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&task).Error
	if err != nil {
		return fmt.Errorf("put task %s: %w", task.ID, err)
	}
	s.changed(ownerID)
	return nil
}

func (s *GormStore) Update(ctx context.Context, taskID string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	var task models.Task
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&task, "id = ?", taskID).Error; err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}(fields)).Error
	if err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	s.changed(task.OwnerID)
	return nil
}

func (s *GormStore) Delete(ctx context.Context, taskID string) error {
	var task models.Task
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&task, "id = ?", taskID).Error; err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", taskID).Error; err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	s.changed(task.OwnerID)
	return nil
}

func (s *GormStore) BatchPut(ctx context.Context, ownerID string, tasks []models.Task) error {
	if ownerID == "" {
		return errors.New("owner id is required")
	}
	if len(tasks) == 0 {
		return nil
	}
	if len(tasks) > MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d", len(tasks), MaxBatchSize)
	}

	batch := make([]models.Task, len(tasks))
	copy(batch, tasks)
	for i := range batch {
		batch[i].OwnerID = ownerID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
			Create(&batch).Error
	})
	if err != nil {
		return fmt.Errorf("batch put %d tasks: %w", len(batch), err)
	}
	s.changed(ownerID)
	return nil
}

func (s *GormStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *GormStore) listTasks(ctx context.Context, ownerID string) ([]models.Task, error) {
	key := listKey(ownerID)
	if s.cache != nil {
		var cached []models.Task
		if err := s.cache.Get(key, &cached); err == nil {
			return cached, nil
		}
	}

	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(key, tasks, listCacheTTL); err != nil {
			log.Printf("⚠️  Failed to cache task list for owner %s: %v", ownerID, err)
		}
	}
	return tasks, nil
}

// changed runs after a committed write: drop the cached list, emit a fresh
// snapshot locally, and signal other instances.
func (s *GormStore) changed(ownerID string) {
	s.invalidate(ownerID)
	s.emitSnapshot(ownerID)

	if s.rdb != nil {
		payload, _ := json.Marshal(changeEvent{Instance: s.instance, OwnerID: ownerID})
		if err := s.rdb.Publish(context.Background(), changeChannel, payload).Err(); err != nil {
			log.Printf("⚠️  Failed to publish change for owner %s: %v", ownerID, err)
		}
	}
}

func (s *GormStore) emitSnapshot(ownerID string) {
	tasks, err := s.listTasks(context.Background(), ownerID)
	if err != nil {
		log.Printf("⚠️  Snapshot query for owner %s failed: %v", ownerID, err)
		return
	}
	s.hub.emit(ownerID, tasks)
}

func (s *GormStore) invalidate(ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(listKey(ownerID)); err != nil {
		log.Printf("⚠️  Failed to invalidate task list for owner %s: %v", ownerID, err)
	}
}

func (s *GormStore) listen(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, changeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("⚠️  Malformed change event: %v", err)
				continue
			}
			if ev.Instance == s.instance {
				continue
			}
			s.invalidate(ev.OwnerID)
			s.emitSnapshot(ev.OwnerID)
		}
	}
}

func listKey(ownerID string) string {
	return "tasks:" + ownerID
}
