// Package sync owns the authoritative in-memory task list. Exactly one of
// the local store (guest mode) or the remote store (signed in) is the source
// of truth at any time; the coordinator performs the guest→account migration
// on sign-in and applies optimistic local mutations while forwarding them to
// the remote store for any authenticated identity. The live remote
// subscription alone waits for email verification.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	gosync "sync"

	"liquid-tasks/internal/identity"
	"liquid-tasks/internal/models"
	"liquid-tasks/internal/remote"
	"liquid-tasks/internal/store"
	"liquid-tasks/internal/toast"
)

// Status is the identity-driven sync state.
type Status int

const (
	// StatusUnknown holds until the identity provider reports for the first time.
	StatusUnknown Status = iota
	// StatusSignedOut: resolved, no identity, guest mode not chosen yet.
	StatusSignedOut
	// StatusGuest: local store is authoritative, no remote sync.
	StatusGuest
	// StatusUnverified: authenticated, mutations forward to the remote
	// store, but the live subscription waits for email verification.
	StatusUnverified
	// StatusVerified: remote subscription is authoritative.
	StatusVerified
)

func (s Status) String() string {
	switch s {
	case StatusSignedOut:
		return "signed_out"
	case StatusGuest:
		return "guest"
	case StatusUnverified:
		return "unverified"
	case StatusVerified:
		return "verified"
	default:
		return "unknown"
	}
}

type Stats struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Pending      int `json:"pending"`
	HighPriority int `json:"high_priority"`
}

var ErrEmptyTitle = errors.New("task title must not be empty")

type Coordinator struct {
	local    *store.Store
	remote   remote.Store
	provider identity.Provider
	toasts   *toast.Center

	mu       gosync.Mutex
	tasks    []models.Task
	identity *models.Identity
	guest    bool
	resolved bool
	streak   int

	subOwner      string
	unsubscribe   func()
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	removeListener func()
}

func New(local *store.Store, remoteStore remote.Store, provider identity.Provider, toasts *toast.Center) *Coordinator {
	return &Coordinator{
		local:    local,
		remote:   remoteStore,
		provider: provider,
		toasts:   toasts,
	}
}

// Start loads the cached task list for instant display, runs the daily
// check, and hooks identity changes. The provider delivers the current
// identity synchronously, so sign-in migration completes before Start
// returns.
func (c *Coordinator) Start() {
	c.mu.Lock()
	c.tasks = c.local.LoadTasks()
	models.SortByCreatedDesc(c.tasks)
	c.dailyCheckLocked()
	c.mu.Unlock()

	c.removeListener = c.provider.OnChange(c.handleIdentity)
}

// Close tears down the identity listener, the live subscription and the
// session scope. Task state is left as-is.
func (c *Coordinator) Close() {
	if c.removeListener != nil {
		c.removeListener()
	}

	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.subOwner = ""
	cancel := c.sessionCancel
	c.sessionCancel = nil
	c.sessionCtx = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

// ContinueAsGuest keeps all data device-local.
func (c *Coordinator) ContinueAsGuest() {
	c.mu.Lock()
	if c.identity == nil {
		c.guest = true
		c.resolved = true
	}
	c.mu.Unlock()
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.identity != nil && c.identity.EmailVerified:
		return StatusVerified
	case c.identity != nil:
		return StatusUnverified
	case c.guest:
		return StatusGuest
	case c.resolved:
		return StatusSignedOut
	default:
		return StatusUnknown
	}
}

func (c *Coordinator) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	clone := *c.identity
	return &clone
}

// Tasks returns the current list, newest first.
func (c *Coordinator) Tasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Filter narrows by case-insensitive title match and category. Empty query
// and category "" or "All" pass everything.
func (c *Coordinator) Filter(query, category string) []models.Task {
	query = strings.ToLower(strings.TrimSpace(query))

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if query != "" && !strings.Contains(strings.ToLower(t.Title), query) {
			continue
		}
		if category != "" && category != "All" && string(t.Category) != category {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Total: len(c.tasks)}
	for _, t := range c.tasks {
		if t.Completed {
			s.Completed++
			continue
		}
		s.Pending++
		if t.Priority == models.PriorityHigh {
			s.HighPriority++
		}
	}
	return s
}

// Create applies the new task optimistically and forwards it to the remote
// store when sync is active. The caller never waits on the network.
func (c *Coordinator) Create(in models.TaskInput) (models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Task{}, ErrEmptyTitle
	}

	c.mu.Lock()
	var owner string
	if c.identity != nil {
		owner = c.identity.ID
	}
	task := models.NewTask(in, owner)
	c.tasks = append([]models.Task{task}, c.tasks...)
	c.persistLocked()
	ctx, forward := c.forwardLocked()
	c.mu.Unlock()

	if forward {
		go func() {
			if err := c.remote.Put(ctx, owner, task); err != nil {
				log.Printf("⚠️  Remote create for task %s failed: %v", task.ID, err)
			}
		}()
	}

	c.toasts.Push("Task Created", fmt.Sprintf("%q added to list.", task.Title), toast.SeveritySuccess)
	return task, nil
}

// Toggle flips completion by id. Reports the new state and whether the task
// was found.
func (c *Coordinator) Toggle(id string) (models.Task, bool) {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return models.Task{}, false
	}
	c.tasks[idx].Completed = !c.tasks[idx].Completed
	task := c.tasks[idx]
	c.persistLocked()
	ctx, forward := c.forwardLocked()
	c.mu.Unlock()

	if forward {
		go func() {
			if err := c.remote.Update(ctx, task.ID, remote.Fields{"completed": task.Completed}); err != nil {
				log.Printf("⚠️  Remote toggle for task %s failed: %v", task.ID, err)
			}
		}()
	}
	return task, true
}

// Edit replaces the user-editable fields of a task.
func (c *Coordinator) Edit(id string, in models.TaskInput) (models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Task{}, ErrEmptyTitle
	}

	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return models.Task{}, fmt.Errorf("task %s not found", id)
	}
	t := &c.tasks[idx]
	t.Title = strings.TrimSpace(in.Title)
	t.Description = in.Description
	if in.Category.Valid() {
		t.Category = in.Category
	}
	if in.Priority.Valid() {
		t.Priority = in.Priority
	}
	t.DueDate = in.DueDate
	t.DueTime = in.DueTime
	task := *t
	c.persistLocked()
	ctx, forward := c.forwardLocked()
	c.mu.Unlock()

	if forward {
		fields := remote.Fields{
			"title":       task.Title,
			"description": task.Description,
			"category":    task.Category,
			"priority":    task.Priority,
			"due_date":    task.DueDate,
			"due_time":    task.DueTime,
		}
		go func() {
			if err := c.remote.Update(ctx, task.ID, fields); err != nil {
				log.Printf("⚠️  Remote edit for task %s failed: %v", task.ID, err)
			}
		}()
	}

	c.toasts.Push("Task Updated", fmt.Sprintf("%q has been saved.", task.Title), toast.SeveritySuccess)
	return task, nil
}

func (c *Coordinator) Delete(id string) bool {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.tasks = append(c.tasks[:idx], c.tasks[idx+1:]...)
	c.persistLocked()
	ctx, forward := c.forwardLocked()
	c.mu.Unlock()

	if forward {
		go func() {
			if err := c.remote.Delete(ctx, id); err != nil {
				log.Printf("⚠️  Remote delete for task %s failed: %v", id, err)
			}
		}()
	}

	c.toasts.Push("Deleted", "Task removed successfully", toast.SeverityInfo)
	return true
}

// Logout clears both the in-memory and the locally persisted task list so
// nothing leaks into the next session's guest view. Device settings are
// kept. The session scope is cancelled, stopping in-flight remote writes.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.subOwner = ""
	cancel := c.sessionCancel
	c.sessionCancel = nil
	c.sessionCtx = nil
	signedIn := c.identity != nil
	c.identity = nil
	c.guest = false
	c.tasks = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	if err := c.local.ClearTasks(); err != nil {
		log.Printf("⚠️  Failed to clear local task list: %v", err)
	}

	if signedIn {
		if err := c.provider.SignOut(ctx); err != nil {
			return fmt.Errorf("sign out failed: %w", err)
		}
	}
	return nil
}

// handleIdentity reacts to identity transitions. Sign-in migrates foreign
// local tasks first, synchronously, so the migration lands before the app
// leaves its loading state.
func (c *Coordinator) handleIdentity(id *models.Identity) {
	if id != nil {
		c.migrate(id)
	}

	c.mu.Lock()
	prevUnsub := c.unsubscribe
	c.unsubscribe = nil
	prevOwner := c.subOwner
	c.subOwner = ""
	prevCancel := c.sessionCancel
	c.sessionCancel = nil
	c.sessionCtx = nil

	c.identity = id
	c.resolved = true
	if id != nil {
		c.guest = false
		// Mutations forward for any signed-in identity, so nothing written
		// before verification is stranded outside the remote store.
		ctx, cancel := context.WithCancel(context.Background())
		c.sessionCtx = ctx
		c.sessionCancel = cancel
	}

	// Only the live subscription waits for a verified email.
	wantSub := id != nil && id.EmailVerified
	var owner string
	if wantSub {
		owner = id.ID
	}
	c.mu.Unlock()

	// Tear down the previous session outside the lock. Leaving a stale
	// listener alive would bleed one account's snapshots into another's view.
	if prevUnsub != nil {
		prevUnsub()
	}
	if prevCancel != nil {
		prevCancel()
	}
	if prevOwner != "" && prevOwner != owner {
		log.Printf("🔁 Sync subscription for %s closed", prevOwner)
	}

	if !wantSub {
		return
	}

	unsub, err := c.remote.Subscribe(owner, func(snapshot []models.Task) {
		c.applySnapshot(owner, snapshot)
	})
	if err != nil {
		log.Printf("⚠️  Subscription for owner %s failed: %v", owner, err)
		return
	}

	c.mu.Lock()
	stillCurrent := c.identity != nil && c.identity.ID == owner && c.identity.EmailVerified
	if stillCurrent {
		c.unsubscribe = unsub
		c.subOwner = owner
	}
	c.mu.Unlock()
	if !stillCurrent {
		unsub()
	}
}

// applySnapshot installs a remote snapshot as the whole truth: full
// replacement, never a merge with pending local edits. The snapshot is also
// cached locally for offline fallback.
func (c *Coordinator) applySnapshot(owner string, snapshot []models.Task) {
	models.SortByCreatedDesc(snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil || c.identity.ID != owner {
		// Stale callback from a subscription being torn down.
		return
	}
	c.tasks = snapshot
	c.persistLocked()
}

// migrate performs the one-time guest→account upload: every local task not
// owned by the new identity is pushed to the remote store in sequential
// chunks. Chunk failures are logged and do not block later chunks.
func (c *Coordinator) migrate(id *models.Identity) {
	local := c.local.LoadTasks()
	var foreign []models.Task
	for _, t := range local {
		if t.OwnerID != id.ID {
			t.OwnerID = id.ID
			foreign = append(foreign, t)
		}
	}
	if len(foreign) == 0 {
		return
	}

	log.Printf("🔁 Migrating %d guest tasks to account %s", len(foreign), id.ID)
	for start := 0; start < len(foreign); start += remote.MaxBatchSize {
		end := min(start+remote.MaxBatchSize, len(foreign))
		if err := c.remote.BatchPut(context.Background(), id.ID, foreign[start:end]); err != nil {
			log.Printf("⚠️  Migration batch %d-%d failed: %v", start, end, err)
		}
	}
}

func (c *Coordinator) indexLocked(id string) int {
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Coordinator) persistLocked() {
	if err := c.local.SaveTasks(c.tasks); err != nil {
		log.Printf("⚠️  Failed to persist task list: %v", err)
	}
}

// forwardLocked reports whether mutations should also go to the remote
// store: any signed-in identity with a live session scope. Guests stay
// device-local.
func (c *Coordinator) forwardLocked() (context.Context, bool) {
	if c.identity == nil || c.sessionCtx == nil {
		return nil, false
	}
	return c.sessionCtx, true
}
