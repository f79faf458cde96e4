package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_FirstPostContents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`(?s)SELECT p\.thread_id, p\.content\s+FROM post p\s+INNER JOIN \(\s+SELECT thread_id, MIN\(created_at\) AS first_at.+WHERE thread_id IN \(\?, \?\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"thread_id", "content"}).
			AddRow(int64(1), "first of 1").
			AddRow(int64(1), "same timestamp, later id").
			AddRow(int64(2), "first of 2"))

	got, err := repo.FirstPostContents(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "first of 1", 2: "first of 2"}, got)
}

func TestPostRepository_FirstPostContents_Empty(t *testing.T) {
	db, _ := newMock(t)
	repo := NewPostRepository(db)

	got, err := repo.FirstPostContents(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostRepository_BelongsToThread(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM post WHERE id = ? AND thread_id = ?")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	ok, err := repo.BelongsToThread(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
