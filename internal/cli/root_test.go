package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/util"
)

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

type mockOwnerCreator struct {
	createFn func(ctx context.Context, email, name, password string) (*model.Owner, error)
}

func (m *mockOwnerCreator) CreateOwner(ctx context.Context, email, name, password string) (*model.Owner, error) {
	return m.createFn(ctx, email, name, password)
}

func execute(t *testing.T, backend Backend, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")

	cmd := NewRootCommand(backend)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(Backend{})
	require.NotNil(t, cmd)
	assert.Equal(t, "attendctl", cmd.Use)

	for _, path := range [][]string{{"migrate"}, {"hash-password"}, {"owner", "add"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	dbFlag := cmd.PersistentFlags().Lookup("database-url")
	require.NotNil(t, dbFlag)
}

func TestMigrateCommand(t *testing.T) {
	t.Run("passes direction and dsn", func(t *testing.T) {
		var gotDSN, gotDirection string
		backend := Backend{Migrate: func(dsn, direction string) error {
			gotDSN, gotDirection = dsn, direction
			return nil
		}}

		out, err := execute(t, backend, "--database-url", "postgres://localhost/attendance", "migrate", "down")

		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost/attendance", gotDSN)
		assert.Equal(t, "down", gotDirection)
		assert.Contains(t, out, "migrations applied (down)")
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		called := false
		backend := Backend{Migrate: func(dsn, direction string) error {
			called = true
			return nil
		}}

		_, err := execute(t, backend, "migrate", "sideways")

		require.Error(t, err)
		assert.False(t, called)
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		_, err := execute(t, Backend{}, "migrate")
		require.Error(t, err)
	})

	t.Run("wraps migration failure", func(t *testing.T) {
		backend := Backend{Migrate: func(dsn, direction string) error {
			return errors.New("dirty database version 1")
		}}

		_, err := execute(t, backend, "migrate", "up")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrate up")
		assert.Contains(t, err.Error(), "dirty database")
	})
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, Backend{}, "hash-password", "correct horse battery")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.True(t, util.CheckPasswordHash("correct horse battery", hash))

	_, err = execute(t, Backend{}, "hash-password")
	require.Error(t, err)
}

func TestOwnerAddCommand(t *testing.T) {
	t.Run("creates owner", func(t *testing.T) {
		closer := &nopCloser{}
		var got [3]string
		backend := Backend{OpenOwners: func(dsn string) (OwnerCreator, io.Closer, error) {
			assert.Equal(t, "postgres://db", dsn)
			return &mockOwnerCreator{createFn: func(ctx context.Context, email, name, password string) (*model.Owner, error) {
				got = [3]string{email, name, password}
				return &model.Owner{ID: "owner-1", Email: email, Name: name}, nil
			}}, closer, nil
		}}

		out, err := execute(t, backend,
			"--database-url", "postgres://db",
			"owner", "add", "--email", "prof@example.edu", "--name", "Ada Lovelace", "--password", "s3cret-pass")

		require.NoError(t, err)
		assert.Equal(t, [3]string{"prof@example.edu", "Ada Lovelace", "s3cret-pass"}, got)
		assert.Contains(t, out, "id=owner-1")
		assert.True(t, closer.closed)
	})

	t.Run("requires flags", func(t *testing.T) {
		_, err := execute(t, Backend{}, "--database-url", "postgres://db", "owner", "add", "--email", "prof@example.edu")
		require.Error(t, err)
	})

	t.Run("requires database url", func(t *testing.T) {
		_, err := execute(t, Backend{}, "owner", "add", "--email", "a@b.c", "--name", "A", "--password", "long-enough")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("surfaces service errors", func(t *testing.T) {
		backend := Backend{OpenOwners: func(dsn string) (OwnerCreator, io.Closer, error) {
			return &mockOwnerCreator{createFn: func(ctx context.Context, email, name, password string) (*model.Owner, error) {
				return nil, apperrors.Conflict("An owner with this email already exists")
			}}, &nopCloser{}, nil
		}}

		_, err := execute(t, backend, "--database-url", "postgres://db",
			"owner", "add", "--email", "a@b.c", "--name", "A", "--password", "long-enough")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("connection failure", func(t *testing.T) {
		backend := Backend{OpenOwners: func(dsn string) (OwnerCreator, io.Closer, error) {
			return nil, nil, errors.New("connection refused")
		}}

		_, err := execute(t, backend, "--database-url", "postgres://db",
			"owner", "add", "--email", "a@b.c", "--name", "A", "--password", "long-enough")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}
