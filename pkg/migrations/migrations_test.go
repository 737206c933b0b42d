package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *testLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *testLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type fakeMigrator struct {
	upErr error
}

func (m *fakeMigrator) Up() error { return m.upErr }
func (m *fakeMigrator) Close() (error, error) {
	return nil, nil
}

type blockingMigrator struct {
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func newBlockingMigrator() *blockingMigrator {
	return &blockingMigrator{closeCh: make(chan struct{})}
}

func (m *blockingMigrator) Up() error {
	<-m.closeCh
	return nil
}

func (m *blockingMigrator) Close() (error, error) {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.closeCh)
	})
	return nil, nil
}

func stubFactories(t *testing.T, mf func(source.Driver, database.Driver) (migrator, error)) {
	t.Helper()
	origDriverFactory := driverFactory
	origMigratorFactory := migratorFactory
	t.Cleanup(func() {
		driverFactory = origDriverFactory
		migratorFactory = origMigratorFactory
	})

	driverFactory = func(_ *sql.DB, cfg Config) (database.Driver, error) {
		if cfg.MigrationsTable == "" {
			t.Errorf("expected migrations table to be defaulted")
		}
		return nil, nil
	}
	migratorFactory = mf
}

func TestUp_NilDB(t *testing.T) {
	assert.Error(t, Up(context.Background(), nil, Config{}))
}

func TestUp_ContextAlreadyCancelled_ReturnsCtxErr(t *testing.T) {
	called := atomic.Bool{}
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		called.Store(true)
		return &fakeMigrator{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Up(ctx, &sql.DB{}, Config{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called.Load(), "factories must not run for a cancelled context")
}

func TestUp_ContextCancelledWhileRunning_ClosesMigrator(t *testing.T) {
	bm := newBlockingMigrator()
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		return bm, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Up(ctx, &sql.DB{}, Config{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, bm.closed.Load())
}

func TestUp_NoChange_ReturnsNil(t *testing.T) {
	logger := &testLogger{}
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		return &fakeMigrator{upErr: migrate.ErrNoChange}, nil
	})

	require.NoError(t, Up(context.Background(), &sql.DB{}, Config{Logger: logger}))
	assert.Contains(t, logger.infos, "No migrations to apply")
}

func TestUp_Success_LogsApplied(t *testing.T) {
	logger := &testLogger{}
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		return &fakeMigrator{}, nil
	})

	require.NoError(t, Up(context.Background(), &sql.DB{}, Config{Logger: logger}))
	assert.Contains(t, logger.infos, "Running SQL migrations")
	assert.Contains(t, logger.infos, "Migrations applied successfully")
}

func TestUp_UpErrorIsWrapped(t *testing.T) {
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		return &fakeMigrator{upErr: errors.New("syntax error at or near")}, nil
	})

	err := Up(context.Background(), &sql.DB{}, Config{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "migrations: up:"))
}

func TestUp_MigratorInitError(t *testing.T) {
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		return nil, errors.New("boom")
	})

	err := Up(context.Background(), &sql.DB{}, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations: init")
}

func TestUp_MissingDirFailsBeforeDriver(t *testing.T) {
	stubFactories(t, func(source.Driver, database.Driver) (migrator, error) {
		t.Fatal("migrator must not be created")
		return nil, nil
	})

	err := Up(context.Background(), &sql.DB{}, Config{Dir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations: resolve dir")
}

func TestOpenSource_EmbeddedCreatesWaitlistTable(t *testing.T) {
	src, origin, err := OpenSource(Config{})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "embedded", origin)

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	r, _, err := src.ReadUp(first)
	require.NoError(t, err)
	defer r.Close()

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS waitlist")
	assert.Contains(t, string(body), "UNIQUE INDEX")
}

func TestOpenSource_DirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my migrations dir")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_add_column.up.sql"), []byte("SELECT 1;"), 0o600))

	src, origin, err := OpenSource(Config{Dir: dir})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, dir, origin)

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(7), first)
}

func TestFiles_ListsUpAndDown(t *testing.T) {
	names, err := Files()
	require.NoError(t, err)
	assert.Contains(t, names, "000001_create_waitlist.up.sql")
	assert.Contains(t, names, "000001_create_waitlist.down.sql")
}
