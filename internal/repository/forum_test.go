package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"forum_go/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForumRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewForumRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forum_node WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(forumRows().AddRow(int64(3), "Crypto News", "crypto-news", "forum", int64(2), "", []byte(`{}`), 1, testTime, testTime))

	node, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, model.NodeForum, node.Type)
	require.NotNil(t, node.ParentID)
	assert.Equal(t, int64(2), *node.ParentID)
	assert.False(t, node.IsZone())
}

func TestForumRepository_GetByID_Zone(t *testing.T) {
	db, mock := newMock(t)
	repo := NewForumRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forum_node WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(forumRows().AddRow(int64(1), "Main", "main", "zone", nil, "#ff0000", []byte(`{"isPrimary":true}`), 0, testTime, testTime))

	node, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, node.IsZone())

	zone := node.ZoneInfo()
	assert.Equal(t, "#ff0000", zone.ColorTheme)
	assert.True(t, zone.IsPrimary)
}

func TestForumRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewForumRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forum_node WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	node, err := repo.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestForumRepository_GetByIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewForumRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forum_node WHERE id IN (?, ?)")).
		WithArgs(int64(2), int64(3)).
		WillReturnRows(forumRows().
			AddRow(int64(2), "Markets", "markets", "category", int64(1), "", nil, 0, testTime, testTime).
			AddRow(int64(3), "Crypto News", "crypto-news", "forum", int64(2), "", nil, 0, testTime, testTime))

	nodes, err := repo.GetByIDs(context.Background(), []int64{2, 3})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	empty, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestForumRepository_GetDescendantIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewForumRepository(db)

	mock.ExpectQuery(`WITH RECURSIVE subtree .+ UNION ALL .+ WHERE s\.depth < \? .+ SELECT DISTINCT id FROM subtree WHERE id <> \?`).
		WithArgs(int64(2), 5, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(4)))

	ids, err := repo.GetDescendantIDs(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids)
}

func TestForumRepository_GetDescendantIDs_Error(t *testing.T) {
	db, mock := newMock(t)
	repo := NewForumRepository(db)

	mock.ExpectQuery("WITH RECURSIVE").WillReturnError(errors.New("conn reset"))

	_, err := repo.GetDescendantIDs(context.Background(), 2, 5)
	assert.Error(t, err)
}
