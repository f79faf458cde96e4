package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func threadRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "slug", "structure_id", "user_id", "is_sticky", "is_locked", "is_solved",
		"solving_post_id", "view_count", "post_count", "hot_score", "last_post_at", "created_at", "updated_at",
	})
}

func addThread(rows *sqlmock.Rows, id int64, slug string, forumID int64) *sqlmock.Rows {
	return rows.AddRow(id, "Title "+slug, slug, forumID, int64(7), false, false, false,
		nil, int64(10), int64(2), 1.5, testTime, testTime, testTime)
}

func forumRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "slug", "type", "parent_id", "color_theme", "plugin_data", "sort_order", "created_at", "updated_at",
	})
}
