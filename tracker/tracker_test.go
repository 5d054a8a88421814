package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"DocWatch/fetcher"
	"DocWatch/snapshot"

	"github.com/google/go-cmp/cmp"
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, bool) {
	f.mu.Lock()
	f.calls++
	content, ok := f.pages[url]
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return content, ok
}

type failingRepo struct {
	data map[string]string
	fail bool
}

func (r *failingRepo) Load() (map[string]string, error) { return r.data, nil }

func (r *failingRepo) SaveAll(m map[string]string) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.data = m
	return nil
}

func newTracker(t *testing.T, pages map[string]string) (*Tracker, *snapshot.FileRepository) {
	t.Helper()
	repo := snapshot.NewFileRepository(filepath.Join(t.TempDir(), "tracked.json"))
	tr, err := New(repo, &fakeFetcher{pages: pages}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return tr, repo
}

func TestAddListRemoveRoundTrip(t *testing.T) {
	tr, repo := newTracker(t, map[string]string{"https://a.dev": "A"})
	ctx := context.Background()

	if err := tr.Add(ctx, "https://a.dev"); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"https://a.dev"}, tr.List()); diff != "" {
		t.Fatalf("unexpected list after add (-want +got):\n%s", diff)
	}
	stored, err := repo.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if stored["https://a.dev"] != "A" {
		t.Fatalf("expected add to be persisted, got %v", stored)
	}

	if err := tr.Remove("https://a.dev"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if got := tr.List(); len(got) != 0 {
		t.Fatalf("expected empty list after remove, got %v", got)
	}
	stored, _ = repo.Load()
	if len(stored) != 0 {
		t.Fatalf("expected remove to be persisted, got %v", stored)
	}
}

func TestAddTwiceReturnsAlreadyTracked(t *testing.T) {
	tr, _ := newTracker(t, map[string]string{"u": "content"})
	ctx := context.Background()

	if err := tr.Add(ctx, "u"); err != nil {
		t.Fatalf("first Add returned error: %v", err)
	}
	if err := tr.Add(ctx, "u"); !errors.Is(err, ErrAlreadyTracked) {
		t.Fatalf("expected ErrAlreadyTracked, got %v", err)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected 1 tracked resource, got %d", tr.Len())
	}
}

func TestAddUnfetchableNeverTracked(t *testing.T) {
	tr, repo := newTracker(t, map[string]string{})

	if err := tr.Add(context.Background(), "https://down.example"); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if got := tr.List(); len(got) != 0 {
		t.Fatalf("unfetchable resource must not be tracked, got %v", got)
	}
	stored, _ := repo.Load()
	if len(stored) != 0 {
		t.Fatalf("nothing should be persisted, got %v", stored)
	}
}

func TestRemoveUnknownReturnsNotTracked(t *testing.T) {
	tr, _ := newTracker(t, nil)
	if err := tr.Remove("nope"); !errors.Is(err, ErrNotTracked) {
		t.Fatalf("expected ErrNotTracked, got %v", err)
	}
}

func TestUpdateIfChanged(t *testing.T) {
	tr, repo := newTracker(t, map[string]string{"doc": "A\nB\nC"})
	if err := tr.Add(context.Background(), "doc"); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	old, changed, err := tr.UpdateIfChanged("doc", "A\nB\nC")
	if err != nil || changed {
		t.Fatalf("expected no change for identical content, got changed=%v err=%v", changed, err)
	}
	if old != "A\nB\nC" {
		t.Fatalf("unexpected old content %q", old)
	}

	old, changed, err = tr.UpdateIfChanged("doc", "A\nX\nC")
	if err != nil || !changed {
		t.Fatalf("expected change to be applied, got changed=%v err=%v", changed, err)
	}
	if old != "A\nB\nC" {
		t.Fatalf("expected previous content to be returned, got %q", old)
	}
	if got, _ := tr.Content("doc"); got != "A\nX\nC" {
		t.Fatalf("unexpected stored content %q", got)
	}

	reloaded, err := repo.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if reloaded["doc"] != "A\nX\nC" {
		t.Fatalf("update not durable, got %q", reloaded["doc"])
	}
}

func TestUpdateAfterRemoveDoesNotResurrect(t *testing.T) {
	tr, _ := newTracker(t, map[string]string{"doc": "v1"})
	if err := tr.Add(context.Background(), "doc"); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := tr.Remove("doc"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	_, changed, err := tr.UpdateIfChanged("doc", "v2")
	if err != nil || changed {
		t.Fatalf("update on removed id must be a no-op, got changed=%v err=%v", changed, err)
	}
	if _, ok := tr.Content("doc"); ok {
		t.Fatalf("removed id was resurrected")
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	repo := &failingRepo{data: map[string]string{"kept": "old"}}
	tr, err := New(repo, &fakeFetcher{pages: map[string]string{"new": "n"}}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	repo.fail = true
	ctx := context.Background()

	if err := tr.Add(ctx, "new"); !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist on add, got %v", err)
	}
	if _, ok := tr.Content("new"); ok {
		t.Fatalf("failed add must be rolled back")
	}

	if err := tr.Remove("kept"); !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist on remove, got %v", err)
	}
	if _, ok := tr.Content("kept"); !ok {
		t.Fatalf("failed remove must be rolled back")
	}

	_, changed, err := tr.UpdateIfChanged("kept", "new content")
	if !errors.Is(err, ErrPersist) || changed {
		t.Fatalf("expected ErrPersist on update, got changed=%v err=%v", changed, err)
	}
	if got, _ := tr.Content("kept"); got != "old" {
		t.Fatalf("failed update must be rolled back, got %q", got)
	}
}

func TestNewSurfacesCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	repo := snapshot.NewFileRepository(path)
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := New(repo, fetcher.FetcherFunc(func(context.Context, string) (string, bool) { return "", false }), nil)
	if !errors.Is(err, snapshot.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestFetchHappensOutsideLock(t *testing.T) {
	f := &fakeFetcher{
		pages:   map[string]string{"slow": "s"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	repo := &failingRepo{data: map[string]string{"existing": "e"}}
	tr, err := New(repo, f, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- tr.Add(context.Background(), "slow") }()
	<-f.started

	// fetch 进行中，其他操作不应被阻塞
	if got := tr.List(); len(got) != 1 || got[0] != "existing" {
		t.Fatalf("unexpected list during fetch: %v", got)
	}
	if err := tr.Remove("existing"); err != nil {
		t.Fatalf("Remove blocked or failed during fetch: %v", err)
	}

	close(f.release)
	if err := <-done; err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"slow"}, tr.List()); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}
}

func TestConcurrentAddOnlyOneWins(t *testing.T) {
	tr, _ := newTracker(t, map[string]string{"u": "c"})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- tr.Add(ctx, "u")
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyTracked):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 7 {
		t.Fatalf("expected exactly one successful add, got ok=%d dup=%d", ok, dup)
	}
}
