package executions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/coderunner/internal/data/repos/testutil"
	domain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
)

func TestExecutionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	lang := testutil.SeedLanguage(t, ctx, tx, "python")
	session := testutil.SeedSession(t, ctx, tx, lang.ID)
	repo := New(db, testutil.Logger(t))

	created, err := repo.Create(dbc, &domain.Execution{SessionID: session.ID, Status: string(domain.StatusQueued)})
	require.NoError(t, err)

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, created.ID, []string{string(domain.StatusCompleted), string(domain.StatusFailed), string(domain.StatusTimeout)}, map[string]interface{}{
		"status": string(domain.StatusRunning),
	})
	require.NoError(t, err)
	require.True(t, ok, "QUEUED -> RUNNING must be allowed")

	// RUNNING -> COMPLETED is allowed while the row is not yet terminal.
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, created.ID, []string{string(domain.StatusCompleted), string(domain.StatusFailed), string(domain.StatusTimeout)}, map[string]interface{}{
		"status": string(domain.StatusCompleted),
	})
	require.NoError(t, err)
	require.True(t, ok)

	// once terminal, further transitions are rejected.
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, created.ID, []string{string(domain.StatusCompleted), string(domain.StatusFailed), string(domain.StatusTimeout)}, map[string]interface{}{
		"status": string(domain.StatusFailed),
	})
	require.NoError(t, err)
	require.False(t, ok, "terminal rows must not be overwritten")

	got, err := repo.GetByID(dbc, created.ID)
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusCompleted), got.Status)
}

func TestExecutionRepoCountSinceAndList(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	lang := testutil.SeedLanguage(t, ctx, tx, "python")
	session := testutil.SeedSession(t, ctx, tx, lang.ID)
	repo := New(db, testutil.Logger(t))

	for i := 0; i < 3; i++ {
		testutil.SeedExecution(t, ctx, tx, session.ID, domain.StatusFailed)
	}
	testutil.SeedExecution(t, ctx, tx, session.ID, domain.StatusCompleted)

	since := time.Now().Add(-time.Minute)
	total, err := repo.CountSince(dbc, session.ID, since, "")
	require.NoError(t, err)
	require.Equal(t, int64(4), total)

	failedOnly, err := repo.CountSince(dbc, session.ID, since, string(domain.StatusFailed))
	require.NoError(t, err)
	require.Equal(t, int64(3), failedOnly)

	list, err := repo.ListBySession(dbc, session.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestExecutionRepoListStaleRunning(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	lang := testutil.SeedLanguage(t, ctx, tx, "python")
	session := testutil.SeedSession(t, ctx, tx, lang.ID)
	repo := New(db, testutil.Logger(t))

	stale := testutil.SeedExecution(t, ctx, tx, session.ID, domain.StatusRunning)
	staleStart := time.Now().Add(-time.Hour)
	require.NoError(t, tx.Model(&domain.Execution{}).Where("id = ?", stale.ID).
		Update("started_at", staleStart).Error)

	fresh := testutil.SeedExecution(t, ctx, tx, session.ID, domain.StatusRunning)
	freshStart := time.Now()
	require.NoError(t, tx.Model(&domain.Execution{}).Where("id = ?", fresh.ID).
		Update("started_at", freshStart).Error)

	rows, err := repo.ListStaleRunning(dbc, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stale.ID, rows[0].ID)
}
