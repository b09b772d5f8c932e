package repositorycache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/goliatone/go-cacheable/interceptor"
	"github.com/goliatone/go-cacheable/pkg/testsupport"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// TestUser represents a test entity
type TestUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// mockRepository records every call and returns the configured results
type mockRepository[T any] struct {
	mu    sync.Mutex
	calls []string

	getResult       T
	getError        error
	getByIDResult   T
	getByIDError    error
	identResult     T
	identError      error
	listRecords     []T
	listTotal       int
	listError       error
	countResult     int
	countError      error
	writeResult     T
	writeManyResult []T
	writeError      error
}

func (m *mockRepository[T]) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockRepository[T]) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRepository[T]) clearCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *mockRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("Get")
	return m.getResult, m.getError
}

func (m *mockRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetByID")
	return m.getByIDResult, m.getByIDError
}

func (m *mockRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetByIdentifier")
	return m.identResult, m.identError
}

func (m *mockRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	m.recordCall("List")
	return m.listRecords, m.listTotal, m.listError
}

func (m *mockRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	m.recordCall("Count")
	return m.countResult, m.countError
}

func (m *mockRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetTx")
	return m.getResult, m.getError
}

func (m *mockRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetByIDTx")
	return m.getByIDResult, m.getByIDError
}

func (m *mockRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetByIdentifierTx")
	return m.identResult, m.identError
}

func (m *mockRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	m.recordCall("ListTx")
	return m.listRecords, m.listTotal, m.listError
}

func (m *mockRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	m.recordCall("CountTx")
	return m.countResult, m.countError
}

func (m *mockRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	m.recordCall("Raw")
	return m.listRecords, m.listError
}

func (m *mockRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	m.recordCall("RawTx")
	return m.listRecords, m.listError
}

func (m *mockRepository[T]) write(method string) (T, error) {
	m.recordCall(method)
	return m.writeResult, m.writeError
}

func (m *mockRepository[T]) writeMany(method string) ([]T, error) {
	m.recordCall(method)
	return m.writeManyResult, m.writeError
}

func (m *mockRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return m.write("Create")
}

func (m *mockRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return m.write("CreateTx")
}

func (m *mockRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return m.writeMany("CreateMany")
}

func (m *mockRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return m.writeMany("CreateManyTx")
}

func (m *mockRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return m.write("GetOrCreate")
}

func (m *mockRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return m.write("GetOrCreateTx")
}

func (m *mockRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return m.write("Update")
}

func (m *mockRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return m.write("UpdateTx")
}

func (m *mockRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return m.writeMany("UpdateMany")
}

func (m *mockRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return m.writeMany("UpdateManyTx")
}

func (m *mockRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return m.write("Upsert")
}

func (m *mockRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return m.write("UpsertTx")
}

func (m *mockRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return m.writeMany("UpsertMany")
}

func (m *mockRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return m.writeMany("UpsertManyTx")
}

func (m *mockRepository[T]) Delete(ctx context.Context, record T) error {
	_, err := m.write("Delete")
	return err
}

func (m *mockRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	_, err := m.write("DeleteTx")
	return err
}

func (m *mockRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	_, err := m.write("DeleteMany")
	return err
}

func (m *mockRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	_, err := m.write("DeleteManyTx")
	return err
}

func (m *mockRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	_, err := m.write("DeleteWhere")
	return err
}

func (m *mockRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	_, err := m.write("DeleteWhereTx")
	return err
}

func (m *mockRepository[T]) ForceDelete(ctx context.Context, record T) error {
	_, err := m.write("ForceDelete")
	return err
}

func (m *mockRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	_, err := m.write("ForceDeleteTx")
	return err
}

func (m *mockRepository[T]) Handlers() repository.ModelHandlers[T] {
	m.recordCall("Handlers")
	return repository.ModelHandlers[T]{}
}

type testRepo struct {
	base   *mockRepository[TestUser]
	store  *testsupport.RecordingCache
	cached *CachedRepository[TestUser]
}

func newTestRepo(t *testing.T, opts ...Option) testRepo {
	t.Helper()
	store := testsupport.NewRecordingCache("test_users", nil)
	manager, err := cache.NewManager(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := interceptor.NewDispatcher(manager,
		interceptor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	base := &mockRepository[TestUser]{}
	cached, err := New[TestUser](d, base, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return testRepo{base: base, store: store, cached: cached}
}

func activeOnly(q *bun.SelectQuery) *bun.SelectQuery {
	return q
}

func TestNew(t *testing.T) {
	r := newTestRepo(t)

	if r.cached.CacheName() != "test_users" {
		t.Errorf("expected cache test_users, got %s", r.cached.CacheName())
	}
	if r.cached.base != r.base {
		t.Error("base repository not stored correctly")
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	manager, _ := cache.NewManager(testsupport.NewRecordingCache("test_users", nil))
	d := interceptor.NewDispatcher(manager)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	if _, err := New[TestUser](d, &mockRepository[TestUser]{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := New[TestUser](d, &mockRepository[TestUser]{})
	if !interceptor.IsDuplicateOperation(err) {
		t.Errorf("expected duplicate operation error, got %v", err)
	}
	if _, err := New[TestUser](d, &mockRepository[TestUser]{}, WithCacheName("archived_users")); err != nil {
		t.Errorf("expected a distinct cache name to register, got %v", err)
	}
}

func TestCachedReadMethods_CacheHit(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		value         any
		testOperation func(*CachedRepository[TestUser]) error
	}{
		{
			name:  "Get_CacheHit",
			key:   "test_users.get::default",
			value: TestUser{ID: "cached-1", Name: "Cached User"},
			testOperation: func(cached *CachedRepository[TestUser]) error {
				user, err := cached.Get(context.Background())
				if err != nil {
					return err
				}
				if user.ID != "cached-1" {
					return fmt.Errorf("expected cached user ID 'cached-1', got '%s'", user.ID)
				}
				return nil
			},
		},
		{
			name:  "GetByID_CacheHit",
			key:   "test_users.get_by_id::default::user-1",
			value: TestUser{ID: "user-1", Name: "Cached User"},
			testOperation: func(cached *CachedRepository[TestUser]) error {
				user, err := cached.GetByID(context.Background(), "user-1")
				if err != nil {
					return err
				}
				if user.ID != "user-1" {
					return fmt.Errorf("expected user ID 'user-1', got '%s'", user.ID)
				}
				return nil
			},
		},
		{
			name:  "GetByIdentifier_CacheHit",
			key:   "test_users.get_by_identifier::default::alice",
			value: TestUser{ID: "user-2", Name: "alice"},
			testOperation: func(cached *CachedRepository[TestUser]) error {
				user, err := cached.GetByIdentifier(context.Background(), "alice")
				if err != nil {
					return err
				}
				if user.Name != "alice" {
					return fmt.Errorf("expected user alice, got '%s'", user.Name)
				}
				return nil
			},
		},
		{
			name: "List_CacheHit",
			key:  "test_users.list::default",
			value: listResult[TestUser]{
				Records: []TestUser{{ID: "1", Name: "User 1"}, {ID: "2", Name: "User 2"}},
				Total:   2,
			},
			testOperation: func(cached *CachedRepository[TestUser]) error {
				records, total, err := cached.List(context.Background())
				if err != nil {
					return err
				}
				if len(records) != 2 || total != 2 {
					return fmt.Errorf("expected 2 records and total 2, got %d records and total %d", len(records), total)
				}
				return nil
			},
		},
		{
			name:  "Count_CacheHit",
			key:   "test_users.count::default",
			value: 42,
			testOperation: func(cached *CachedRepository[TestUser]) error {
				count, err := cached.Count(context.Background())
				if err != nil {
					return err
				}
				if count != 42 {
					return fmt.Errorf("expected count 42, got %d", count)
				}
				return nil
			},
		},
		{
			name: "Count_EncodedHit",
			key:  "test_users.count::default",
			value: func() cache.Encoded {
				enc, _ := cache.Encode(7)
				return enc
			}(),
			testOperation: func(cached *CachedRepository[TestUser]) error {
				count, err := cached.Count(context.Background())
				if err != nil {
					return err
				}
				if count != 7 {
					return fmt.Errorf("expected count 7, got %d", count)
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(t)
			r.store.Seed(tt.key, tt.value)

			if err := tt.testOperation(r.cached); err != nil {
				t.Fatal(err)
			}
			if calls := r.base.getCalls(); len(calls) != 0 {
				t.Errorf("expected no repository calls on cache hit, got %v", calls)
			}
		})
	}
}

func TestCachedReadMethods_CacheMiss(t *testing.T) {
	tests := []struct {
		name          string
		setupRepo     func(*mockRepository[TestUser])
		testOperation func(*CachedRepository[TestUser]) (any, error)
		expectedCall  string
		expectedKey   string
	}{
		{
			name: "Get_CacheMiss",
			setupRepo: func(repo *mockRepository[TestUser]) {
				repo.getResult = TestUser{ID: "db-1"}
			},
			testOperation: func(cached *CachedRepository[TestUser]) (any, error) {
				return cached.Get(context.Background())
			},
			expectedCall: "Get",
			expectedKey:  "test_users.get::default",
		},
		{
			name: "GetByID_CacheMiss",
			setupRepo: func(repo *mockRepository[TestUser]) {
				repo.getByIDResult = TestUser{ID: "user-1"}
			},
			testOperation: func(cached *CachedRepository[TestUser]) (any, error) {
				return cached.GetByID(context.Background(), "user-1")
			},
			expectedCall: "GetByID",
			expectedKey:  "test_users.get_by_id::default::user-1",
		},
		{
			name: "GetByIdentifier_CacheMiss",
			setupRepo: func(repo *mockRepository[TestUser]) {
				repo.identResult = TestUser{ID: "user-2", Name: "alice"}
			},
			testOperation: func(cached *CachedRepository[TestUser]) (any, error) {
				return cached.GetByIdentifier(context.Background(), "alice")
			},
			expectedCall: "GetByIdentifier",
			expectedKey:  "test_users.get_by_identifier::default::alice",
		},
		{
			name: "List_CacheMiss",
			setupRepo: func(repo *mockRepository[TestUser]) {
				repo.listRecords = []TestUser{{ID: "1"}}
				repo.listTotal = 1
			},
			testOperation: func(cached *CachedRepository[TestUser]) (any, error) {
				records, total, err := cached.List(context.Background())
				return listResult[TestUser]{Records: records, Total: total}, err
			},
			expectedCall: "List",
			expectedKey:  "test_users.list::default",
		},
		{
			name: "Count_CacheMiss",
			setupRepo: func(repo *mockRepository[TestUser]) {
				repo.countResult = 3
			},
			testOperation: func(cached *CachedRepository[TestUser]) (any, error) {
				return cached.Count(context.Background())
			},
			expectedCall: "Count",
			expectedKey:  "test_users.count::default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(t)
			tt.setupRepo(r.base)

			first, err := tt.testOperation(r.cached)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := r.store.Peek(tt.expectedKey); !ok {
				t.Errorf("expected result stored under %s", tt.expectedKey)
			}

			second, err := tt.testOperation(r.cached)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("expected cached result %v, got %v", first, second)
			}

			calls := r.base.getCalls()
			if len(calls) != 1 || calls[0] != tt.expectedCall {
				t.Errorf("expected a single %s call, got %v", tt.expectedCall, calls)
			}
		})
	}
}

func TestCachedReadMethods_ErrorPropagation(t *testing.T) {
	r := newTestRepo(t)
	dbErr := errors.New("database unavailable")
	r.base.getByIDError = dbErr

	if _, err := r.cached.GetByID(context.Background(), "user-1"); !errors.Is(err, dbErr) {
		t.Errorf("expected %v, got %v", dbErr, err)
	}
	if r.store.Len() != 0 {
		t.Errorf("expected nothing cached after a failed read, got %d entries", r.store.Len())
	}

	r.base.getByIDError = nil
	r.base.getByIDResult = TestUser{ID: "user-1"}
	if _, err := r.cached.GetByID(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(r.base.getCalls()); got != 2 {
		t.Errorf("expected the failed read to be retried, got %d calls", got)
	}
}

func TestCachedReadMethods_Criteria(t *testing.T) {
	r := newTestRepo(t)
	r.base.listRecords = []TestUser{{ID: "1"}}
	r.base.listTotal = 1

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, _, err := r.cached.List(ctx, activeOnly); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := len(r.base.getCalls()); got != 2 {
		t.Errorf("expected unscoped criteria reads to bypass the cache, got %d calls", got)
	}
	if r.store.Len() != 0 {
		t.Errorf("expected nothing cached, got %d entries", r.store.Len())
	}

	r.base.clearCalls()
	scoped := WithCacheScope(ctx, "active")
	for i := 0; i < 2; i++ {
		if _, _, err := r.cached.List(scoped, activeOnly); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := len(r.base.getCalls()); got != 1 {
		t.Errorf("expected scoped reads to be cached, got %d calls", got)
	}
	if _, ok := r.store.Peek("test_users.list::active"); !ok {
		t.Error("expected result stored under the scope key")
	}
}

func TestCachedReadMethods_WithoutCache(t *testing.T) {
	r := newTestRepo(t)
	r.store.Seed("test_users.count::default", 42)
	r.base.countResult = 5

	count, err := r.cached.Count(WithoutCache(context.Background()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 5 {
		t.Errorf("expected the database count 5, got %d", count)
	}
	if r.store.CountOf(testsupport.OpGet) != 0 {
		t.Errorf("expected the cache not to be read, got %v", r.store.Calls())
	}
}

func TestCachedReadMethods_Atomic(t *testing.T) {
	r := newTestRepo(t, WithAtomicReads())
	r.base.getByIDResult = TestUser{ID: "user-1"}

	for i := 0; i < 3; i++ {
		user, err := r.cached.GetByID(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != "user-1" {
			t.Errorf("expected user-1, got %s", user.ID)
		}
	}
	if got := len(r.base.getCalls()); got != 1 {
		t.Errorf("expected one repository call, got %d", got)
	}
	if r.store.CountOf(testsupport.OpGetOrCompute) != 3 {
		t.Errorf("expected reads through get-or-compute, got %v", r.store.Calls())
	}
}

func TestWriteMethods_InvalidateCache(t *testing.T) {
	ctx := context.Background()
	user := TestUser{ID: "user-1", Name: "Updated"}
	tx := bun.IDB(nil)

	tests := []struct {
		name          string
		testOperation func(*CachedRepository[TestUser]) error
		expectedCall  string
	}{
		{"Create", func(c *CachedRepository[TestUser]) error { _, err := c.Create(ctx, user); return err }, "Create"},
		{"CreateTx", func(c *CachedRepository[TestUser]) error { _, err := c.CreateTx(ctx, tx, user); return err }, "CreateTx"},
		{"CreateMany", func(c *CachedRepository[TestUser]) error { _, err := c.CreateMany(ctx, []TestUser{user}); return err }, "CreateMany"},
		{"CreateManyTx", func(c *CachedRepository[TestUser]) error { _, err := c.CreateManyTx(ctx, tx, []TestUser{user}); return err }, "CreateManyTx"},
		{"GetOrCreate", func(c *CachedRepository[TestUser]) error { _, err := c.GetOrCreate(ctx, user); return err }, "GetOrCreate"},
		{"GetOrCreateTx", func(c *CachedRepository[TestUser]) error { _, err := c.GetOrCreateTx(ctx, tx, user); return err }, "GetOrCreateTx"},
		{"Update", func(c *CachedRepository[TestUser]) error { _, err := c.Update(ctx, user); return err }, "Update"},
		{"UpdateTx", func(c *CachedRepository[TestUser]) error { _, err := c.UpdateTx(ctx, tx, user); return err }, "UpdateTx"},
		{"UpdateMany", func(c *CachedRepository[TestUser]) error { _, err := c.UpdateMany(ctx, []TestUser{user}); return err }, "UpdateMany"},
		{"UpdateManyTx", func(c *CachedRepository[TestUser]) error { _, err := c.UpdateManyTx(ctx, tx, []TestUser{user}); return err }, "UpdateManyTx"},
		{"Upsert", func(c *CachedRepository[TestUser]) error { _, err := c.Upsert(ctx, user); return err }, "Upsert"},
		{"UpsertTx", func(c *CachedRepository[TestUser]) error { _, err := c.UpsertTx(ctx, tx, user); return err }, "UpsertTx"},
		{"UpsertMany", func(c *CachedRepository[TestUser]) error { _, err := c.UpsertMany(ctx, []TestUser{user}); return err }, "UpsertMany"},
		{"UpsertManyTx", func(c *CachedRepository[TestUser]) error { _, err := c.UpsertManyTx(ctx, tx, []TestUser{user}); return err }, "UpsertManyTx"},
		{"Delete", func(c *CachedRepository[TestUser]) error { return c.Delete(ctx, user) }, "Delete"},
		{"DeleteTx", func(c *CachedRepository[TestUser]) error { return c.DeleteTx(ctx, tx, user) }, "DeleteTx"},
		{"DeleteMany", func(c *CachedRepository[TestUser]) error { return c.DeleteMany(ctx) }, "DeleteMany"},
		{"DeleteManyTx", func(c *CachedRepository[TestUser]) error { return c.DeleteManyTx(ctx, tx) }, "DeleteManyTx"},
		{"DeleteWhere", func(c *CachedRepository[TestUser]) error { return c.DeleteWhere(ctx) }, "DeleteWhere"},
		{"DeleteWhereTx", func(c *CachedRepository[TestUser]) error { return c.DeleteWhereTx(ctx, tx) }, "DeleteWhereTx"},
		{"ForceDelete", func(c *CachedRepository[TestUser]) error { return c.ForceDelete(ctx, user) }, "ForceDelete"},
		{"ForceDeleteTx", func(c *CachedRepository[TestUser]) error { return c.ForceDeleteTx(ctx, tx, user) }, "ForceDeleteTx"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"_Success", func(t *testing.T) {
			r := newTestRepo(t)
			r.store.Seed("test_users.get_by_id::default::user-1", TestUser{ID: "user-1", Name: "Stale"})
			r.store.Seed("test_users.count::default", 1)

			if err := tt.testOperation(r.cached); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if calls := r.base.getCalls(); len(calls) != 1 || calls[0] != tt.expectedCall {
				t.Errorf("expected a single %s call, got %v", tt.expectedCall, calls)
			}
			if r.store.Len() != 0 {
				t.Errorf("expected the cache to be cleared, got %d entries", r.store.Len())
			}
		})

		t.Run(tt.name+"_Error", func(t *testing.T) {
			r := newTestRepo(t)
			r.store.Seed("test_users.count::default", 1)
			r.base.writeError = errors.New("write failed")

			if err := tt.testOperation(r.cached); err == nil || err.Error() != "write failed" {
				t.Fatalf("expected write failed, got %v", err)
			}
			if r.store.Len() != 1 {
				t.Errorf("expected the cache untouched after a failed write, got %d entries", r.store.Len())
			}
		})
	}
}

func TestWriteMethods_ReturnResult(t *testing.T) {
	r := newTestRepo(t)
	r.base.writeResult = TestUser{ID: "new-user", Name: "New User"}
	r.base.writeManyResult = []TestUser{{ID: "a"}, {ID: "b"}}

	created, err := r.cached.Create(context.Background(), TestUser{Name: "New User"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "new-user" {
		t.Errorf("expected created user ID 'new-user', got '%s'", created.ID)
	}

	many, err := r.cached.UpsertMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(many) != 2 {
		t.Errorf("expected 2 records, got %d", len(many))
	}
}

func TestWriteMethods_ThenRead(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	r.base.getByIDResult = TestUser{ID: "user-1", Name: "Before"}

	if _, err := r.cached.GetByID(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.base.getByIDResult = TestUser{ID: "user-1", Name: "After"}
	if _, err := r.cached.Update(ctx, TestUser{ID: "user-1", Name: "After"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := r.cached.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "After" {
		t.Errorf("expected a fresh read after the update, got %s", user.Name)
	}
}

func TestPassThroughMethods(t *testing.T) {
	ctx := context.Background()
	tx := bun.IDB(nil)

	tests := []struct {
		name          string
		testOperation func(*CachedRepository[TestUser]) error
		expectedCall  string
	}{
		{"GetTx", func(c *CachedRepository[TestUser]) error { _, err := c.GetTx(ctx, tx); return err }, "GetTx"},
		{"GetByIDTx", func(c *CachedRepository[TestUser]) error { _, err := c.GetByIDTx(ctx, tx, "1"); return err }, "GetByIDTx"},
		{"GetByIdentifierTx", func(c *CachedRepository[TestUser]) error { _, err := c.GetByIdentifierTx(ctx, tx, "a"); return err }, "GetByIdentifierTx"},
		{"ListTx", func(c *CachedRepository[TestUser]) error { _, _, err := c.ListTx(ctx, tx); return err }, "ListTx"},
		{"CountTx", func(c *CachedRepository[TestUser]) error { _, err := c.CountTx(ctx, tx); return err }, "CountTx"},
		{"Raw", func(c *CachedRepository[TestUser]) error { _, err := c.Raw(ctx, "SELECT 1"); return err }, "Raw"},
		{"RawTx", func(c *CachedRepository[TestUser]) error { _, err := c.RawTx(ctx, tx, "SELECT 1"); return err }, "RawTx"},
		{"Handlers", func(c *CachedRepository[TestUser]) error { c.Handlers(); return nil }, "Handlers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(t)
			for i := 0; i < 2; i++ {
				if err := tt.testOperation(r.cached); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			calls := r.base.getCalls()
			if len(calls) != 2 || calls[0] != tt.expectedCall {
				t.Errorf("expected two %s calls, got %v", tt.expectedCall, calls)
			}
			if len(r.store.Calls()) != 0 {
				t.Errorf("expected no cache calls, got %v", r.store.Calls())
			}
		})
	}
}

func TestRepositoryInterfaceSatisfaction(t *testing.T) {
	r := newTestRepo(t)

	var repo repository.Repository[TestUser] = r.cached
	if repo == nil {
		t.Error("CachedRepository does not satisfy Repository interface")
	}
}
