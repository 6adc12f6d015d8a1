package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mealbook/internal/ledger"
	"mealbook/internal/storage"
)

// fakeStore wraps a MemoryStore and counts or breaks upserts.
type fakeStore struct {
	*storage.MemoryStore

	mu      sync.Mutex
	upserts int
	failErr error
	entered chan struct{}
	release chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: storage.NewMemoryStore()}
}

func (f *fakeStore) Upsert(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	f.mu.Lock()
	f.upserts++
	failErr, entered, release := f.failErr, f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if failErr != nil {
		return ledger.Ledger{}, failErr
	}
	return f.MemoryStore.Upsert(ctx, l)
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func (f *fakeStore) setFail(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

const testDelay = 50 * time.Millisecond

func newTestEditor(store Store) *Editor {
	return NewEditor("owner-1", store, Config{AutosaveDelay: testDelay, SaveTimeout: time.Second})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func seedPrior(t *testing.T, store *fakeStore, month, year int, names ...string) ledger.Ledger {
	t.Helper()
	l := ledger.New(ledger.Key{OwnerID: "owner-1", Month: month, Year: year})
	l.Details = ledger.Details{SchoolName: "Tiểu học A", ClassName: "3A", TeacherName: "Cô Hoa"}
	l.StandardMeals = ledger.Quota{S: 20, T1: 20, T2: 20}
	for i, n := range names {
		l.Students = append(l.Students, ledger.Student{
			ID:    string(rune('a' + i)),
			Name:  n,
			Meals: ledger.DayMarks{1: {S: true}},
		})
	}
	if _, err := store.MemoryStore.Upsert(context.Background(), l); err != nil {
		t.Fatalf("seed prior: %v", err)
	}
	return l
}

func TestEditsRequireOpenLedger(t *testing.T) {
	e := newTestEditor(newFakeStore())
	if _, err := e.ClearMonth(); !errors.Is(err, ErrNoLedger) {
		t.Errorf("ClearMonth before Open: %v", err)
	}
	if _, err := e.Ledger(); !errors.Is(err, ErrNoLedger) {
		t.Errorf("Ledger before Open: %v", err)
	}
	if err := e.Save(context.Background()); err != nil {
		t.Errorf("Save with nothing open should be a no-op, got %v", err)
	}
}

func TestOpenEmptyMonth(t *testing.T) {
	store := newFakeStore()
	e := newTestEditor(store)

	res, err := e.Open(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !res.Created || res.Seeded {
		t.Errorf("result = %+v, want created and not seeded", res)
	}
	if st := e.Status(); st.State != Clean {
		t.Errorf("state = %v, want clean", st.State)
	}
	time.Sleep(4 * testDelay)
	if n := store.count(); n != 0 {
		t.Errorf("empty month should not be persisted, got %d upserts", n)
	}
}

func TestOpenInvalidMonth(t *testing.T) {
	e := newTestEditor(newFakeStore())
	if _, err := e.Open(context.Background(), 12, 2024); !errors.Is(err, ledger.ErrInvalidMonth) {
		t.Fatalf("Open month 12: %v", err)
	}
}

func TestOpenSeedsFromPriorAndAutosaves(t *testing.T) {
	store := newFakeStore()
	seedPrior(t, store, 1, 2024, "Linh", "Minh")
	e := newTestEditor(store)

	res, err := e.Open(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !res.Seeded {
		t.Fatalf("expected seeded ledger")
	}
	if len(res.Ledger.Students) != 2 || res.Ledger.Students[0].Meals.Has(1) {
		t.Fatalf("seeded students = %+v", res.Ledger.Students)
	}
	if st := e.Status(); st.State != Dirty {
		t.Fatalf("seeded ledger should be dirty, got %v", st.State)
	}

	waitFor(t, "autosave of seed", func() bool { return e.Status().State == Clean })
	stored, err := store.Fetch(context.Background(), ledger.Key{OwnerID: "owner-1", Month: 3, Year: 2024})
	if err != nil {
		t.Fatalf("seed not persisted: %v", err)
	}
	if stored.ClassName != "3A" {
		t.Errorf("class = %q", stored.ClassName)
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	store := newFakeStore()
	e := newTestEditor(store)
	if _, err := e.Open(context.Background(), 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, s, err := e.AddStudent()
	if err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	for day := 1; day <= 5; day++ {
		if _, err := e.Toggle(s.ID, day, ledger.Lunch); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
	}
	if n := store.count(); n != 0 {
		t.Fatalf("saved before the quiet period: %d", n)
	}

	waitFor(t, "debounced save", func() bool { return e.Status().State == Clean })
	time.Sleep(4 * testDelay)
	if n := store.count(); n != 1 {
		t.Errorf("upserts = %d, want 1", n)
	}
}

func TestSaveBypassesDebounce(t *testing.T) {
	store := newFakeStore()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})
	if _, err := e.Open(context.Background(), 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := e.UpdateDetails(ledger.Details{ClassName: "5C"}); err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st := e.Status()
	if st.State != Clean || st.LastSaved.IsZero() {
		t.Errorf("status after save = %+v", st)
	}
	if n := store.count(); n != 1 {
		t.Errorf("upserts = %d, want 1", n)
	}
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if n := store.count(); n != 1 {
		t.Errorf("clean save should not upsert, got %d", n)
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	store := newFakeStore()
	e := newTestEditor(store)
	if _, err := e.Open(context.Background(), 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.setFail(errors.New("disk full"))
	if _, err := e.SetQuota(ledger.Quota{S: 1}); err != nil {
		t.Fatalf("SetQuota: %v", err)
	}
	err := e.Save(context.Background())
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("Save error = %v, want ErrStorageFailure", err)
	}
	if st := e.Status(); st.State != Dirty || st.LastError == "" {
		t.Fatalf("status after failure = %+v", st)
	}
	l, _ := e.Ledger()
	if l.StandardMeals.S != 1 {
		t.Errorf("local state lost after failed save")
	}

	// No retry on its own.
	time.Sleep(4 * testDelay)
	if n := store.count(); n != 1 {
		t.Errorf("upserts = %d, want 1 (no automatic retry)", n)
	}

	store.setFail(nil)
	if _, err := e.SetQuota(ledger.Quota{S: 2}); err != nil {
		t.Fatalf("SetQuota: %v", err)
	}
	waitFor(t, "re-armed autosave", func() bool { return e.Status().State == Clean })
	if e.LastError() != nil {
		t.Errorf("LastError not cleared: %v", e.LastError())
	}
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	store := newFakeStore()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})
	if _, err := e.Open(context.Background(), 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := e.AddStudent(); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}

	store.mu.Lock()
	store.entered = make(chan struct{})
	store.release = make(chan struct{})
	entered, release := store.entered, store.release
	store.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- e.Save(context.Background()) }()
	<-entered

	if st := e.Status(); st.State != Saving {
		t.Errorf("state during upsert = %v, want saving", st.State)
	}
	if _, _, err := e.AddStudent(); err != nil {
		t.Fatalf("AddStudent during save: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Save: %v", err)
	}

	if st := e.Status(); st.State != Dirty {
		t.Fatalf("state after save with concurrent edit = %v, want dirty", st.State)
	}
	stored, err := store.Fetch(context.Background(), ledger.Key{OwnerID: "owner-1", Month: 0, Year: 2024})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(stored.Students) != 1 {
		t.Errorf("stored students = %d, want the 1 from the snapshot", len(stored.Students))
	}
}

func TestOpenFlushesPendingEdits(t *testing.T) {
	store := newFakeStore()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})
	ctx := context.Background()
	if _, err := e.Open(ctx, 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, s, _ := e.AddStudent()
	if _, err := e.Toggle(s.ID, 2, ledger.Breakfast); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	res, err := e.Open(ctx, 1, 2024)
	if err != nil {
		t.Fatalf("Open February: %v", err)
	}
	jan, err := store.Fetch(ctx, ledger.Key{OwnerID: "owner-1", Month: 0, Year: 2024})
	if err != nil {
		t.Fatalf("January not flushed: %v", err)
	}
	if !jan.Students[0].Meals.Get(2).S {
		t.Errorf("January mark lost")
	}
	if !res.Seeded || len(res.Ledger.Students) != 1 {
		t.Errorf("February should be seeded from January: %+v", res)
	}
}

func TestOpenAbortsWhenFlushFails(t *testing.T) {
	store := newFakeStore()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})
	ctx := context.Background()
	if _, err := e.Open(ctx, 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := e.AddStudent(); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	store.setFail(errors.New("connection refused"))

	if _, err := e.Open(ctx, 1, 2024); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("Open error = %v, want ErrStorageFailure", err)
	}
	l, err := e.Ledger()
	if err != nil {
		t.Fatalf("ledger dropped after failed flush: %v", err)
	}
	if l.Month != 0 || len(l.Students) != 1 {
		t.Errorf("ledger = %v with %d students", l.Key, len(l.Students))
	}
	if st := e.Status(); st.State != Dirty {
		t.Errorf("state = %v, want dirty", st.State)
	}
}

func TestCloseFlushesAndDrops(t *testing.T) {
	store := newFakeStore()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})
	ctx := context.Background()
	if _, err := e.Open(ctx, 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, s, _ := e.AddStudent()
	if err := e.CopyRow(s.ID); err != nil {
		t.Fatalf("CopyRow: %v", err)
	}
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("ledger not flushed on close")
	}
	st := e.Status()
	if st.Open || st.HasRow {
		t.Errorf("status after close = %+v", st)
	}
	if _, _, err := e.AddStudent(); !errors.Is(err, ErrNoLedger) {
		t.Errorf("AddStudent after close: %v", err)
	}
}

func TestSync(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})

	if _, err := e.Open(ctx, 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := e.Sync(ctx); !errors.Is(err, ErrNoPriorLedger) {
		t.Fatalf("Sync without prior: %v", err)
	}

	prior := seedPrior(t, store, 2, 2024, "Linh Nguyen", "Mai")
	if _, err := e.Open(ctx, 3, 2024); err != nil {
		t.Fatalf("Open April: %v", err)
	}
	if err := e.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := e.Toggle("a", 1, ledger.Breakfast); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if _, err := e.RemoveStudent("b"); err != nil {
		t.Fatalf("RemoveStudent: %v", err)
	}
	if _, err := e.RenameStudent("a", "Linh"); err != nil {
		t.Fatalf("RenameStudent: %v", err)
	}

	res, err := e.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Added) != 1 || len(res.Renamed) != 1 {
		t.Errorf("result = %+v", res)
	}
	l, _ := e.Ledger()
	if len(l.Students) != 2 {
		t.Fatalf("students = %+v", l.Students)
	}
	if l.Students[0].Name != prior.Students[0].Name || !l.Students[0].Meals.Get(1).S {
		t.Errorf("first student = %+v", l.Students[0])
	}
	if l.Students[1].ID != "b" || len(l.Students[1].Meals) != 0 {
		t.Errorf("re-added student = %+v", l.Students[1])
	}
	if e.Status().State != Dirty {
		t.Errorf("sync should dirty the ledger")
	}
}

func TestColumnClipboardThroughEditor(t *testing.T) {
	store := newFakeStore()
	e := NewEditor("owner-1", store, Config{AutosaveDelay: time.Hour})
	if _, err := e.Open(context.Background(), 0, 2024); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, a, _ := e.AddStudent()
	_, _, _ = e.AddStudent()
	if _, err := e.Toggle(a.ID, 3, ledger.Dinner); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if _, err := e.PasteColumn(4, ledger.Dinner); !errors.Is(err, ledger.ErrEmptyClipboard) {
		t.Fatalf("PasteColumn with empty clipboard: %v", err)
	}
	rev := e.Status().Revision
	if err := e.CopyColumn(3, ledger.Dinner); err != nil {
		t.Fatalf("CopyColumn: %v", err)
	}
	if e.Status().Revision != rev {
		t.Errorf("copy must not count as an edit")
	}
	l, err := e.PasteColumn(4, ledger.Dinner)
	if err != nil {
		t.Fatalf("PasteColumn: %v", err)
	}
	if !l.Students[0].Meals.Get(4).T2 || l.Students[1].Meals.Get(4).T2 {
		t.Errorf("pasted column = %v / %v", l.Students[0].Meals.Get(4), l.Students[1].Meals.Get(4))
	}
}
