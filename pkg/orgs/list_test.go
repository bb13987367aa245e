package orgs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/perm"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	evaluator := perm.NewEvaluator(db, perm.NewStore(db), perm.EvaluatorOptions{})
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(db, evaluator, logger), mock
}

func orgColumns() []string {
	return []string{
		"id", "name", "description", "visibility", "activity_status",
		"join_policy", "created_by", "created_at", "updated_at",
	}
}

func TestService_ListForUser(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Now()

	rows := sqlmock.NewRows(orgColumns()).
		AddRow(1, "acme", "", "OPEN", "ACTIVE", "OPEN", 7, now, now).
		AddRow(2, "globex", "", "CLOSED", "INACTIVE", "CLOSED", 7, now, now)

	mock.ExpectQuery(`SELECT o\.id, o\.name`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	orgs, err := svc.ListForUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "acme", orgs[0].Name)
	assert.Equal(t, VisibilityClosed, orgs[1].Visibility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ListForUser_Empty(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT o\.id, o\.name`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orgColumns()))

	orgs, err := svc.ListForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, orgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ListOpen(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Now()

	rows := sqlmock.NewRows(orgColumns()).
		AddRow(3, "public", "open to all", "OPEN", "ACTIVE", "OPEN", 9, now, now)

	mock.ExpectQuery(`SELECT id, name`).
		WithArgs("OPEN", "OPEN").
		WillReturnRows(rows)

	orgs, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "public", orgs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
