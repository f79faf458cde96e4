package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/model"
	"forum_go/internal/pkg/pool"
	"forum_go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForums struct {
	nodes []*model.ForumNode
	err   error
}

func (s *stubForums) GetByID(ctx context.Context, id int64) (*model.ForumNode, error) {
	for _, n := range s.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (s *stubForums) GetByIDs(ctx context.Context, ids []int64) ([]*model.ForumNode, error) {
	return nil, nil
}

func (s *stubForums) GetAll(ctx context.Context) ([]*model.ForumNode, error) {
	return s.nodes, s.err
}

func (s *stubForums) GetDescendantIDs(ctx context.Context, id int64, maxDepth int) ([]int64, error) {
	return nil, nil
}

func newRuntime(t *testing.T, repo *stubForums) (*Runtime, *service.ZoneResolver) {
	t.Helper()
	cfg := config.Default()
	store, err := pool.NewBigCache(4, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	zones := service.NewZoneResolver(repo, store, &cfg.Cache, &cfg.Hierarchy)
	tabs := service.NewTabCache(store, &cfg.Cache)
	svc := service.NewForumService(repo, store, zones, tabs, cfg)
	return New(&RuntimeConfig{ForumSvc: svc}), zones
}

func TestRuntime_Reload(t *testing.T) {
	parent := int64(1)
	repo := &stubForums{nodes: []*model.ForumNode{
		{ID: 1, Name: "Main", Type: model.NodeZone},
		{ID: 2, Name: "General", Type: model.NodeForum, ParentID: &parent},
	}}
	r, zones := newRuntime(t, repo)

	require.NoError(t, r.Reload(context.Background()))
	assert.Len(t, r.GetForumList(), 2)
	require.Len(t, r.GetForumTree(), 1)
	assert.Len(t, r.GetForumTree()[0].Children, 1)
	assert.False(t, r.GetLoadedAt().IsZero())

	status := r.Status()
	assert.Equal(t, 2, status["forum_count"])
	assert.Equal(t, 2, status["zones_primed"])

	// 预热后直接命中 memo
	repo.nodes = nil
	zone, err := zones.ResolveZone(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, zone)
	assert.Equal(t, int64(1), zone.ID)
}

func TestRuntime_ReloadError(t *testing.T) {
	r, _ := newRuntime(t, &stubForums{err: errors.New("db down")})
	assert.Error(t, r.Reload(context.Background()))
	assert.Equal(t, 0, r.Status()["forum_count"])
}
