package credstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePG emulates the three statements PostgresStore issues against client_state.
type fakePG struct {
	mu   sync.Mutex
	rows map[string]string
	err  error
}

func newFakePG() *fakePG { return &fakePG{rows: make(map[string]string)} }

type fakeRow struct {
	val string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.val
	return nil
}

func (f *fakePG) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	q := strings.TrimSpace(sql)
	switch {
	case strings.HasPrefix(q, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(q, "INSERT INTO client_state"):
		f.rows[args[0].(string)] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(q, "DELETE FROM client_state"):
		for _, k := range args[0].([]string) {
			delete(f.rows, k)
		}
		return pgconn.NewCommandTag("DELETE"), nil
	}
	panic("unexpected statement: " + q)
}

func (f *fakePG) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	v, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{val: v}
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newRedisStore(rdb, "marketplace", zap.NewNop()), mr
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state", "session.json"))
	require.NoError(t, err)
	rs, _ := newTestRedisStore(t)

	return map[string]Store{
		"memory":   NewMemoryStore(),
		"file":     fs,
		"redis":    rs,
		"postgres": newPostgresStore(newFakePG(), zap.NewNop()),
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, KeyAccessToken)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, KeyAccessToken, "A"))
			require.NoError(t, s.Set(ctx, KeyRefreshToken, "R"))
			require.NoError(t, s.Set(ctx, KeyUser, `{"role":"freelancer"}`))

			v, err := s.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, "A", v)

			require.NoError(t, s.Set(ctx, KeyAccessToken, "A2"))
			v, err = s.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, "A2", v, "set overwrites")

			require.NoError(t, s.Delete(ctx, SessionKeys...))
			for _, k := range SessionKeys {
				_, err := s.Get(ctx, k)
				assert.ErrorIs(t, err, ErrNotFound, k)
			}

			require.NoError(t, s.Delete(ctx, "never-set"), "deleting an absent key is not an error")
			require.NoError(t, s.Close())
		})
	}
}

func TestFileStore_Permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "session.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), KeyAccessToken, "A"))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	di, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), di.Mode().Perm())
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	a, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, a.Set(context.Background(), KeyRefreshToken, "R"))

	b, err := NewFileStore(path)
	require.NoError(t, err)
	v, err := b.Get(context.Background(), KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "R", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), KeyAccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	s, mr := newTestRedisStore(t)
	require.NoError(t, s.Set(context.Background(), KeyAccessToken, "A"))

	v, err := mr.Get("marketplace:access_token")
	require.NoError(t, err)
	assert.Equal(t, "A", v)
}

func TestRedisStore_HealthCheck(t *testing.T) {
	s, mr := newTestRedisStore(t)
	require.NoError(t, s.HealthCheck(context.Background()))

	mr.Close()
	err := s.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRedisStore_HealthCheckNil(t *testing.T) {
	s := &RedisStore{}
	err := s.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis not initialized")
}

func TestPostgresStore_ErrorsPropagate(t *testing.T) {
	pg := newFakePG()
	pg.err = assert.AnError
	s := newPostgresStore(pg, zap.NewNop())

	_, err := s.Get(context.Background(), KeyUser)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, s.Set(context.Background(), KeyUser, "{}"), assert.AnError)
	assert.ErrorIs(t, s.Delete(context.Background(), KeyUser), assert.AnError)
	assert.Error(t, s.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Backend: BackendFile, FilePath: filepath.Join(t.TempDir(), "s.json")}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Backend: BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "p"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "etcd"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}
