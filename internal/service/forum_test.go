package service

import (
	"context"
	"encoding/json"
	"testing"

	"forum_go/internal/core/mq"
	"forum_go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandDescendants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids, err := env.forumSvc.ExpandDescendants(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	ids, err = env.forumSvc.ExpandDescendants(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3, 4}, ids)
	assert.NotContains(t, ids, int64(1))

	ids, err = env.forumSvc.ExpandDescendants(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestBuildTree(t *testing.T) {
	roots := BuildTree(defaultTree())

	require.Len(t, roots, 2)
	assert.Equal(t, int64(1), roots[0].ID)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, int64(2), roots[0].Children[0].ID)
	assert.Equal(t, int64(3), roots[0].Children[0].Children[0].ID)
	assert.Equal(t, int64(11), roots[1].Children[0].ID)
}

func TestForumService_GetCachesNode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	n, err := env.forumSvc.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "crypto-news", n.Slug)

	_, err = env.forumSvc.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, env.forums.getByIDCalls)

	missing, err := env.forumSvc.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHandleHierarchyEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.zones.Prime(ctx, defaultTree())

	key := env.tabs.Key(TabKey{Tab: model.TabRecent, Page: 1, Limit: 20})
	env.tabs.Set(ctx, model.TabRecent, key, env.tabs.Generation(), &model.TabPage{Page: 1})

	env.forums.nodes[2].ParentID = ptr(int64(10))
	body, _ := json.Marshal(mq.HierarchyEvent{NodeID: 2, Action: "moved"})
	require.NoError(t, env.forumSvc.HandleHierarchyEvent(ctx, "forum.node.moved", body))

	zone, err := env.zones.ResolveZone(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), zone.ID)

	_, ok := env.tabs.Get(ctx, model.TabRecent, key)
	assert.False(t, ok, "tab cache must be invalidated")
}

func TestHandleHierarchyEvent_Malformed(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.forumSvc.HandleHierarchyEvent(context.Background(), "forum.node.moved", []byte("{")))
}
