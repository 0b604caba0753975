package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"liquid-tasks/internal/models"
	"liquid-tasks/internal/remote"
	"liquid-tasks/internal/store"
	"liquid-tasks/internal/toast"
)

// fakeRemote records every call so tests can assert on exactly what the
// coordinator forwarded. The err fields inject backend failures: every call
// is still recorded before the error is returned.
type fakeRemote struct {
	mu           gosync.Mutex
	puts         []models.Task
	updates      []fieldUpdate
	deletes      []string
	batches      [][]models.Task
	subscribes   int
	unsubscribes int
	subs         map[string][]func([]models.Task)

	putErr    error
	updateErr error
	batchErrs map[int]error
}

type fieldUpdate struct {
	taskID string
	fields remote.Fields
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{subs: make(map[string][]func([]models.Task))}
}

func (f *fakeRemote) Subscribe(ownerID string, fn func([]models.Task)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	f.subs[ownerID] = append(f.subs[ownerID], fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
	}, nil
}

func (f *fakeRemote) Put(_ context.Context, _ string, task models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, task)
	return f.putErr
}

func (f *fakeRemote) Update(_ context.Context, taskID string, fields remote.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fieldUpdate{taskID: taskID, fields: fields})
	return f.updateErr
}

func (f *fakeRemote) Delete(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, taskID)
	return nil
}

func (f *fakeRemote) BatchPut(_ context.Context, _ string, tasks []models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]models.Task, len(tasks))
	copy(batch, tasks)
	f.batches = append(f.batches, batch)
	return f.batchErrs[len(f.batches)-1]
}

// emit delivers a snapshot to every live subscriber of the owner.
func (f *fakeRemote) emit(ownerID string, tasks []models.Task) {
	f.mu.Lock()
	fns := append([]func([]models.Task){}, f.subs[ownerID]...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(tasks)
	}
}

func (f *fakeRemote) counts() (puts, updates, deletes, batches, subscribes, unsubscribes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts), len(f.updates), len(f.deletes), len(f.batches), f.subscribes, f.unsubscribes
}

// fakeProvider is an in-memory identity source tests drive directly.
type fakeProvider struct {
	mu        gosync.Mutex
	current   *models.Identity
	listeners []func(*models.Identity)
}

func (p *fakeProvider) OnChange(fn func(*models.Identity)) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	current := p.current
	p.mu.Unlock()
	fn(current)
	return func() {}
}

func (p *fakeProvider) setIdentity(id *models.Identity) {
	p.mu.Lock()
	p.current = id
	fns := append([]func(*models.Identity){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (p *fakeProvider) SignIn(context.Context, string, string) (*models.Identity, error) {
	return nil, nil
}
func (p *fakeProvider) SignUp(context.Context, string, string) (*models.Identity, error) {
	return nil, nil
}
func (p *fakeProvider) SignInFederated(context.Context, string, string, string, string) (*models.Identity, error) {
	return nil, nil
}
func (p *fakeProvider) SignOut(context.Context) error {
	p.setIdentity(nil)
	return nil
}
func (p *fakeProvider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
func (p *fakeProvider) Reload(context.Context) (*models.Identity, error) { return p.current, nil }
func (p *fakeProvider) SendVerification(context.Context) error          { return nil }
func (p *fakeProvider) ConfirmVerification(context.Context, string) (*models.Identity, error) {
	return nil, nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeRemote, *fakeProvider, *store.Store) {
	t.Helper()
	local, err := store.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	rem := newFakeRemote()
	prov := &fakeProvider{}
	toasts := toast.NewCenter(time.Minute)
	t.Cleanup(toasts.Close)

	c := New(local, rem, prov, toasts)
	t.Cleanup(c.Close)
	return c, rem, prov, local
}

// waitFor polls until the condition holds, for assertions on fire-and-forget
// remote writes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func verifiedIdentity(id string) *models.Identity {
	return &models.Identity{ID: id, Email: id + "@example.com", EmailVerified: true}
}

func TestGuestMutationsStayLocal(t *testing.T) {
	c, rem, _, local := newTestCoordinator(t)
	c.Start()
	c.ContinueAsGuest()

	task, err := c.Create(models.TaskInput{Title: "buy milk"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.OwnerID != "" {
		t.Errorf("Guest task should have no owner, got %q", task.OwnerID)
	}

	if _, ok := c.Toggle(task.ID); !ok {
		t.Fatal("Toggle should find the task")
	}
	if !c.Delete(task.ID) {
		t.Fatal("Delete should find the task")
	}

	time.Sleep(50 * time.Millisecond)
	puts, updates, deletes, batches, subscribes, _ := rem.counts()
	if puts+updates+deletes+batches+subscribes != 0 {
		t.Errorf("Guest mode must never touch the remote store, got %d/%d/%d/%d/%d",
			puts, updates, deletes, batches, subscribes)
	}

	if got := local.LoadTasks(); len(got) != 0 {
		t.Errorf("Expected empty persisted list after delete, got %d tasks", len(got))
	}
	if c.Status() != StatusGuest {
		t.Errorf("Expected guest status, got %s", c.Status())
	}
}

func TestToggleIsIdempotentPairAndForwards(t *testing.T) {
	c, rem, prov, _ := newTestCoordinator(t)
	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	task, err := c.Create(models.TaskInput{Title: "write report"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitFor(t, func() bool { p, _, _, _, _, _ := rem.counts(); return p == 1 }, "Create was not forwarded")

	first, _ := c.Toggle(task.ID)
	second, _ := c.Toggle(task.ID)
	if !first.Completed || second.Completed {
		t.Errorf("Double toggle should return to original state, got %v then %v", first.Completed, second.Completed)
	}

	waitFor(t, func() bool { _, u, _, _, _, _ := rem.counts(); return u == 2 }, "Expected two remote updates")

	rem.mu.Lock()
	defer rem.mu.Unlock()
	states := map[bool]int{}
	for _, u := range rem.updates {
		if u.taskID != task.ID {
			t.Errorf("Update targeted wrong task %s", u.taskID)
		}
		done, _ := u.fields["completed"].(bool)
		states[done]++
	}
	if states[true] != 1 || states[false] != 1 {
		t.Errorf("Expected one completed=true and one completed=false update, got %v", states)
	}
}

func TestSignInMigratesForeignTasksWithOwnerStamp(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)

	owned := models.NewTask(models.TaskInput{Title: "already mine"}, "uid-1")
	guest := models.NewTask(models.TaskInput{Title: "guest task"}, "")
	other := models.NewTask(models.TaskInput{Title: "other account"}, "uid-9")
	if err := local.SaveTasks([]models.Task{owned, guest, other}); err != nil {
		t.Fatalf("Seeding local store failed: %v", err)
	}

	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	// Migration is synchronous within the identity callback.
	rem.mu.Lock()
	defer rem.mu.Unlock()
	if len(rem.batches) != 1 {
		t.Fatalf("Expected exactly one migration batch, got %d", len(rem.batches))
	}
	batch := rem.batches[0]
	if len(batch) != 2 {
		t.Fatalf("Expected 2 migrated tasks (guest + foreign), got %d", len(batch))
	}
	for _, task := range batch {
		if task.OwnerID != "uid-1" {
			t.Errorf("Migrated task %q must be stamped with the new owner, got %q", task.Title, task.OwnerID)
		}
		if task.ID == owned.ID {
			t.Error("Tasks already owned by the identity must not be re-uploaded")
		}
	}
}

func TestMigrationChunksSequentially(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)

	tasks := make([]models.Task, 1200)
	for i := range tasks {
		tasks[i] = models.NewTask(models.TaskInput{Title: fmt.Sprintf("task %d", i)}, "")
	}
	if err := local.SaveTasks(tasks); err != nil {
		t.Fatalf("Seeding local store failed: %v", err)
	}

	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	rem.mu.Lock()
	defer rem.mu.Unlock()
	if len(rem.batches) != 3 {
		t.Fatalf("Expected 3 batches for 1200 tasks, got %d", len(rem.batches))
	}
	for i, want := range []int{500, 500, 200} {
		if len(rem.batches[i]) != want {
			t.Errorf("Batch %d: expected %d tasks, got %d", i, want, len(rem.batches[i]))
		}
	}
}

func TestSnapshotReplacesEntireList(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)
	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	stale := make([]models.Task, 6)
	for i := range stale {
		stale[i] = models.NewTask(models.TaskInput{Title: fmt.Sprintf("stale %d", i)}, "uid-1")
	}
	rem.emit("uid-1", stale)
	if got := len(c.Tasks()); got != 6 {
		t.Fatalf("Expected 6 tasks after first snapshot, got %d", got)
	}

	fresh := make([]models.Task, 5)
	for i := range fresh {
		fresh[i] = models.NewTask(models.TaskInput{Title: fmt.Sprintf("fresh %d", i)}, "uid-1")
	}
	rem.emit("uid-1", fresh)

	tasks := c.Tasks()
	if len(tasks) != 5 {
		t.Fatalf("Snapshot must replace, not merge: expected 5 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		for _, old := range stale {
			if task.ID == old.ID {
				t.Errorf("Stale task %q survived the snapshot replacement", task.Title)
			}
		}
	}

	if got := local.LoadTasks(); len(got) != 5 {
		t.Errorf("Snapshot should be cached locally, got %d tasks", len(got))
	}
}

func TestLogoutClearsStateAndUnsubscribes(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)
	c.Start()

	if err := c.SetTheme("light"); err != nil {
		t.Fatalf("SetTheme failed: %v", err)
	}

	prov.setIdentity(verifiedIdentity("uid-1"))
	if _, _, _, _, subs, _ := rem.counts(); subs != 1 {
		t.Fatalf("Expected one live subscription, got %d", subs)
	}

	rem.emit("uid-1", []models.Task{models.NewTask(models.TaskInput{Title: "cloud task"}, "uid-1")})
	if len(c.Tasks()) != 1 {
		t.Fatal("Snapshot did not arrive")
	}

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if got := len(c.Tasks()); got != 0 {
		t.Errorf("Expected empty list after logout, got %d tasks", got)
	}
	if got := local.LoadTasks(); len(got) != 0 {
		t.Errorf("Local task cache must be cleared on logout, got %d tasks", len(got))
	}
	if _, _, _, _, _, unsubs := rem.counts(); unsubs == 0 {
		t.Error("Logout must tear down the remote subscription")
	}
	if prov.Current() != nil {
		t.Error("Provider should be signed out")
	}
	if c.Theme() != "light" {
		t.Error("Device settings must survive logout")
	}
	if c.Status() != StatusSignedOut {
		t.Errorf("Expected signed-out status, got %s", c.Status())
	}
}

func TestUnverifiedIdentityForwardsWithoutSubscribing(t *testing.T) {
	c, rem, prov, _ := newTestCoordinator(t)
	c.Start()
	prov.setIdentity(&models.Identity{ID: "uid-1", Email: "u@example.com", EmailVerified: false})

	if c.Status() != StatusUnverified {
		t.Fatalf("Expected unverified status, got %s", c.Status())
	}

	task, err := c.Create(models.TaskInput{Title: "pending verification"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.OwnerID != "uid-1" {
		t.Errorf("Task must carry the signed-in owner, got %q", task.OwnerID)
	}
	c.Toggle(task.ID)

	waitFor(t, func() bool { p, u, _, _, _, _ := rem.counts(); return p == 1 && u == 1 },
		"Mutations of a signed-in identity must reach the remote store")

	if _, _, _, _, subscribes, _ := rem.counts(); subscribes != 0 {
		t.Errorf("Unverified identity must not subscribe, got %d", subscribes)
	}
}

func TestTaskCreatedBeforeVerificationSurvivesVerification(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)
	c.Start()
	prov.setIdentity(&models.Identity{ID: "uid-1", Email: "u@example.com", EmailVerified: false})

	task, err := c.Create(models.TaskInput{Title: "written before verifying"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitFor(t, func() bool { p, _, _, _, _, _ := rem.counts(); return p == 1 },
		"Create must be forwarded before verification")

	// Verification flips the subscription on and the remote store echoes its
	// current contents back as the first snapshot.
	prov.setIdentity(verifiedIdentity("uid-1"))

	rem.mu.Lock()
	echo := append([]models.Task{}, rem.puts...)
	rem.mu.Unlock()
	rem.emit("uid-1", echo)

	tasks := c.Tasks()
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("Task created before verification must survive the first snapshot, got %+v", tasks)
	}
	if got := local.LoadTasks(); len(got) != 1 || got[0].ID != task.ID {
		t.Errorf("Local cache lost the task across verification, got %d tasks", len(got))
	}
}

func TestMigrationContinuesPastFailedChunk(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)
	rem.batchErrs = map[int]error{0: errors.New("backend unavailable")}

	tasks := make([]models.Task, 1200)
	for i := range tasks {
		tasks[i] = models.NewTask(models.TaskInput{Title: fmt.Sprintf("task %d", i)}, "")
	}
	if err := local.SaveTasks(tasks); err != nil {
		t.Fatalf("Seeding local store failed: %v", err)
	}

	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	rem.mu.Lock()
	defer rem.mu.Unlock()
	if len(rem.batches) != 3 {
		t.Fatalf("A failed chunk must not block the rest of the migration, got %d of 3 batches", len(rem.batches))
	}
	for i, want := range []int{500, 500, 200} {
		if len(rem.batches[i]) != want {
			t.Errorf("Batch %d: expected %d tasks, got %d", i, want, len(rem.batches[i]))
		}
	}
}

func TestFailedRemoteWriteKeepsOptimisticState(t *testing.T) {
	c, rem, prov, local := newTestCoordinator(t)
	rem.putErr = errors.New("backend unavailable")
	rem.updateErr = errors.New("backend unavailable")

	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	task, err := c.Create(models.TaskInput{Title: "optimistic"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	toggled, ok := c.Toggle(task.ID)
	if !ok || !toggled.Completed {
		t.Fatalf("Toggle failed: ok=%v completed=%v", ok, toggled.Completed)
	}

	waitFor(t, func() bool { p, u, _, _, _, _ := rem.counts(); return p == 1 && u == 1 },
		"Remote writes were not attempted")

	tasks := c.Tasks()
	if len(tasks) != 1 || tasks[0].ID != task.ID || !tasks[0].Completed {
		t.Fatalf("Failed remote writes must not roll back local state, got %+v", tasks)
	}
	if got := local.LoadTasks(); len(got) != 1 || !got[0].Completed {
		t.Errorf("Local persistence must keep the optimistic state, got %+v", got)
	}
}

func TestStaleSnapshotAfterIdentityChangeIsIgnored(t *testing.T) {
	c, rem, prov, _ := newTestCoordinator(t)
	c.Start()
	prov.setIdentity(verifiedIdentity("uid-1"))

	prov.setIdentity(verifiedIdentity("uid-2"))
	rem.emit("uid-1", []models.Task{models.NewTask(models.TaskInput{Title: "leak"}, "uid-1")})

	if got := len(c.Tasks()); got != 0 {
		t.Errorf("Snapshot for a previous identity must be dropped, got %d tasks", got)
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	c.Start()
	c.ContinueAsGuest()

	if _, err := c.Create(models.TaskInput{Title: "   "}); err != ErrEmptyTitle {
		t.Errorf("Expected ErrEmptyTitle, got %v", err)
	}
	if _, err := c.Edit("some-id", models.TaskInput{Title: ""}); err != ErrEmptyTitle {
		t.Errorf("Expected ErrEmptyTitle on edit, got %v", err)
	}
}

func TestFilterAndStats(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	c.Start()
	c.ContinueAsGuest()

	c.Create(models.TaskInput{Title: "Buy groceries", Category: models.CategoryShopping})
	c.Create(models.TaskInput{Title: "Team standup", Category: models.CategoryWork, Priority: models.PriorityHigh})
	done, _ := c.Create(models.TaskInput{Title: "Morning run", Category: models.CategoryHealth})
	c.Toggle(done.ID)

	if got := c.Filter("buy", ""); len(got) != 1 || got[0].Title != "Buy groceries" {
		t.Errorf("Case-insensitive title filter failed: %+v", got)
	}
	if got := c.Filter("", "Work"); len(got) != 1 {
		t.Errorf("Category filter failed, got %d tasks", len(got))
	}
	if got := c.Filter("", "All"); len(got) != 3 {
		t.Errorf("'All' category should pass everything, got %d", len(got))
	}

	stats := c.Stats()
	if stats.Total != 3 || stats.Completed != 1 || stats.Pending != 2 || stats.HighPriority != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestGuestTasksSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "local.db")

	local, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	prov := &fakeProvider{}
	toasts := toast.NewCenter(time.Minute)
	c := New(local, newFakeRemote(), prov, toasts)
	c.Start()
	c.ContinueAsGuest()
	created, _ := c.Create(models.TaskInput{Title: "survives restart"})
	c.Close()
	toasts.Close()
	local.Close()

	reopened, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen local store: %v", err)
	}
	defer reopened.Close()
	toasts2 := toast.NewCenter(time.Minute)
	defer toasts2.Close()
	c2 := New(reopened, newFakeRemote(), &fakeProvider{}, toasts2)
	c2.Start()
	defer c2.Close()

	tasks := c2.Tasks()
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("Expected the guest task to survive restart, got %+v", tasks)
	}
}

func TestDailyStreak(t *testing.T) {
	c, _, _, local := newTestCoordinator(t)

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	local.Set(store.KeyLastDailyCheck, yesterday)
	local.SetInt(store.KeyStreak, 4)

	c.Start()
	if got := c.Streak(); got != 5 {
		t.Errorf("Consecutive-day start should increment streak, got %d", got)
	}

	// A second check on the same day must not double-count.
	c.mu.Lock()
	c.dailyCheckLocked()
	c.mu.Unlock()
	if got := c.Streak(); got != 5 {
		t.Errorf("Same-day check must not change streak, got %d", got)
	}
}
