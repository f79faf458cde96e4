package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/mq"
	"forum_go/internal/model"
	"forum_go/internal/pkg/pool"
	"forum_go/internal/repository"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// ---- forum ----

type fakeForumRepo struct {
	mu            sync.Mutex
	nodes         map[int64]*model.ForumNode
	getByIDCalls  int
	getByIDsCalls [][]int64
	err           error
}

func newFakeForumRepo(nodes ...*model.ForumNode) *fakeForumRepo {
	r := &fakeForumRepo{nodes: make(map[int64]*model.ForumNode)}
	for _, n := range nodes {
		r.nodes[n.ID] = n
	}
	return r
}

func (r *fakeForumRepo) GetByID(ctx context.Context, id int64) (*model.ForumNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByIDCalls++
	if r.err != nil {
		return nil, r.err
	}
	return r.nodes[id], nil
}

func (r *fakeForumRepo) GetByIDs(ctx context.Context, ids []int64) ([]*model.ForumNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByIDsCalls = append(r.getByIDsCalls, ids)
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.ForumNode
	for _, id := range ids {
		if n, ok := r.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeForumRepo) GetAll(ctx context.Context) ([]*model.ForumNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ForumNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeForumRepo) GetDescendantIDs(ctx context.Context, id int64, maxDepth int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	seen := map[int64]bool{id: true}
	frontier := []int64{id}
	var out []int64
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, n := range r.nodes {
			if n.ParentID == nil || seen[n.ID] {
				continue
			}
			for _, p := range frontier {
				if *n.ParentID == p {
					seen[n.ID] = true
					next = append(next, n.ID)
					out = append(out, n.ID)
				}
			}
		}
		frontier = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---- users ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User
	calls [][]int64
	err   error
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ids)
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByUsernames(ctx context.Context, names []string) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, name := range names {
		for _, u := range r.users {
			if u.Username == name {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

// ---- threads + posts ----

type fakeDB struct {
	mu          sync.Mutex
	threads     map[int64]*model.Thread
	posts       map[int64][]*model.Post
	follows     map[int64][]int64 // follower -> followees
	threadTags  map[int64][]string
	searchCalls int
	excerptCall int
	failPost    bool
	dupOnce     bool
	incErr      error
	// searchHook 在 Search 读完数据、释放锁之后调用，用于构造并发交错
	searchHook func(ctx context.Context)
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		threads:    make(map[int64]*model.Thread),
		posts:      make(map[int64][]*model.Post),
		follows:    make(map[int64][]int64),
		threadTags: make(map[int64][]string),
	}
}

func (d *fakeDB) add(t *model.Thread, firstPost string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *t
	d.threads[t.ID] = &cp
	d.posts[t.ID] = append(d.posts[t.ID], &model.Post{
		ID: t.ID*10 + 1, ThreadID: t.ID, UserID: t.UserID, Content: firstPost, IsFirstPost: true, CreatedAt: t.CreatedAt,
	})
}

func (d *fakeDB) GetByID(ctx context.Context, id int64) (*model.Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.threads[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (d *fakeDB) GetBySlug(ctx context.Context, slug string, forumID *int64) (*model.Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var best *model.Thread
	for _, t := range d.threads {
		if t.Slug != slug || (forumID != nil && t.StructureID != *forumID) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (d *fakeDB) filter(q *model.ThreadQuery) []*model.Thread {
	nodes := map[int64]bool{}
	for _, id := range q.NodeIDs {
		nodes[id] = true
	}
	followees := map[int64]bool{}
	if q.FollowerID != nil {
		for _, id := range d.follows[*q.FollowerID] {
			followees[id] = true
		}
	}

	var out []*model.Thread
	for _, t := range d.threads {
		if len(nodes) > 0 && !nodes[t.StructureID] {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(q.Search)) {
			continue
		}
		if q.UserID != nil && t.UserID != *q.UserID {
			continue
		}
		if q.FollowerID != nil && !followees[t.UserID] {
			continue
		}
		if q.TagSlug != "" {
			found := false
			for _, s := range d.threadTags[t.ID] {
				found = found || s == q.TagSlug
			}
			if !found {
				continue
			}
		}
		cp := *t
		out = append(out, &cp)
	}

	key := func(t *model.Thread) float64 {
		switch q.Sort {
		case model.SortTrending:
			return t.HotScore
		case model.SortMostReplies:
			return float64(t.PostCount)
		case model.SortMostViews:
			return float64(t.ViewCount)
		case model.SortActive:
			return float64(t.LastPostAt.UnixNano())
		default:
			return float64(t.CreatedAt.UnixNano())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if q.StickyFirst && out[i].IsSticky != out[j].IsSticky {
			return out[i].IsSticky
		}
		ki, kj := key(out[i]), key(out[j])
		if ki != kj {
			return ki > kj
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (d *fakeDB) Search(ctx context.Context, q *model.ThreadQuery) ([]*model.Thread, error) {
	d.mu.Lock()
	d.searchCalls++
	all := d.filter(q)
	hook := d.searchHook
	d.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Offset >= len(all) {
		return []*model.Thread{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[q.Offset:end], nil
}

// blockFirstSearch 第一次 Search 读完数据后阻塞，直到 release 关闭
func (d *fakeDB) blockFirstSearch() (entered, release chan struct{}) {
	entered, release = make(chan struct{}), make(chan struct{})
	var once sync.Once
	d.mu.Lock()
	d.searchHook = func(ctx context.Context) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	d.mu.Unlock()
	return entered, release
}

func (d *fakeDB) Count(ctx context.Context, q *model.ThreadQuery) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.filter(q)), nil
}

func (d *fakeDB) SlugsWithPrefix(ctx context.Context, forumID int64, prefix string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, t := range d.threads {
		if t.StructureID == forumID && strings.HasPrefix(t.Slug, prefix) {
			out = append(out, t.Slug)
		}
	}
	return out, nil
}

func (d *fakeDB) CreateWithFirstPost(ctx context.Context, t *model.Thread, p *model.Post) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dupOnce {
		d.dupOnce = false
		return repository.ErrDuplicate
	}
	for _, existing := range d.threads {
		if existing.StructureID == t.StructureID && existing.Slug == t.Slug {
			return repository.ErrDuplicate
		}
	}
	if d.failPost {
		return errors.New("insert first post: deadlock")
	}
	cp := *t
	cp.PostCount = 1
	d.threads[t.ID] = &cp
	pc := *p
	d.posts[t.ID] = []*model.Post{&pc}
	t.PostCount = 1
	return nil
}

func (d *fakeDB) IncViewCount(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.incErr != nil {
		return d.incErr
	}
	if t, ok := d.threads[id]; ok {
		t.ViewCount++
	}
	return nil
}

func (d *fakeDB) SyncPostCount(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.incErr != nil {
		return d.incErr
	}
	if t, ok := d.threads[id]; ok {
		t.PostCount = int64(len(d.posts[id]))
	}
	return nil
}

func (d *fakeDB) UpdateSolved(ctx context.Context, id int64, postID *int64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.threads[id]; ok {
		t.IsSolved = postID != nil
		t.SolvingPostID = postID
		t.UpdatedAt = at
	}
	return nil
}

func (d *fakeDB) RecalculateHotScores(ctx context.Context, since time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, t := range d.threads {
		if t.LastPostAt.Before(since) {
			continue
		}
		t.HotScore = HotScore(t.ViewCount, t.PostCount, 0, baseTime.Sub(t.CreatedAt))
		n++
	}
	return n, nil
}

func (d *fakeDB) FirstPostContents(ctx context.Context, ids []int64) (map[int64]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.excerptCall++
	out := make(map[int64]string)
	for _, id := range ids {
		if ps := d.posts[id]; len(ps) > 0 {
			out[id] = ps[0].Content
		}
	}
	return out, nil
}

func (d *fakeDB) BelongsToThread(ctx context.Context, postID, threadID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.posts[threadID] {
		if p.ID == postID {
			return true, nil
		}
	}
	return false, nil
}

// ---- tags ----

type fakeTagRepo struct {
	mu     sync.Mutex
	nextID int64
	bySlug map[string]*model.Tag
	db     *fakeDB
}

func newFakeTagRepo(db *fakeDB) *fakeTagRepo {
	return &fakeTagRepo{bySlug: make(map[string]*model.Tag), db: db}
}

func (r *fakeTagRepo) Upsert(ctx context.Context, name, slug string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.bySlug[slug]; ok {
		return t.ID, nil
	}
	r.nextID++
	r.bySlug[slug] = &model.Tag{ID: r.nextID, Name: name, Slug: slug}
	return r.nextID, nil
}

func (r *fakeTagRepo) GetByThread(ctx context.Context, threadID int64) ([]*model.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Tag
	for _, slug := range r.db.threadTags[threadID] {
		out = append(out, r.bySlug[slug])
	}
	return out, nil
}

func (r *fakeTagRepo) Link(ctx context.Context, tt *model.ThreadTag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for slug, t := range r.bySlug {
		if t.ID == tt.TagID {
			r.db.threadTags[tt.ThreadID] = append(r.db.threadTags[tt.ThreadID], slug)
		}
	}
	return nil
}

// ---- collaborators ----

type fakeMentions struct {
	mu    sync.Mutex
	calls []MentionInput
	err   error
}

func (m *fakeMentions) ProcessMentions(ctx context.Context, in MentionInput) ([]Mention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in)
	return nil, m.err
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (e *fakeEmitter) Emit(ctx context.Context, eventType string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
	return e.err
}

func (e *fakeEmitter) Close() error { return nil }

var _ mq.Emitter = (*fakeEmitter)(nil)

// ---- wiring ----

type testEnv struct {
	cfg      *config.Config
	forums   *fakeForumRepo
	users    *fakeUserRepo
	db       *fakeDB
	tagRepo  *fakeTagRepo
	mentions *fakeMentions
	emitter  *fakeEmitter
	store    *pool.BigCache
	zones    *ZoneResolver
	tabs     *TabCache
	forumSvc *ForumService
	enricher *Enricher
	svc      *ThreadService
}

// 默认树：Zone(1) -> Category(2) -> Forum(3, crypto-news)；Zone(1) -> Forum(4)；Zone(10) -> Forum(11)
func defaultTree() []*model.ForumNode {
	zone := &model.ForumNode{ID: 1, Name: "Main", Slug: "main", Type: model.NodeZone, ColorTheme: "#112233"}
	cat := &model.ForumNode{ID: 2, Name: "Markets", Slug: "markets", Type: model.NodeCategory, ParentID: ptr(int64(1))}
	crypto := &model.ForumNode{ID: 3, Name: "Crypto News", Slug: "crypto-news", Type: model.NodeForum, ParentID: ptr(int64(2))}
	general := &model.ForumNode{ID: 4, Name: "General", Slug: "general", Type: model.NodeForum, ParentID: ptr(int64(1))}
	zone2 := &model.ForumNode{ID: 10, Name: "Offtopic", Slug: "offtopic", Type: model.NodeZone}
	lounge := &model.ForumNode{ID: 11, Name: "Lounge", Slug: "lounge", Type: model.NodeForum, ParentID: ptr(int64(10))}
	return []*model.ForumNode{zone, cat, crypto, general, zone2, lounge}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()

	store, err := pool.NewBigCache(8, 10*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		cfg:      cfg,
		forums:   newFakeForumRepo(defaultTree()...),
		users:    newFakeUserRepo(&model.User{ID: 7, Username: "alice"}, &model.User{ID: 8, Username: "bob"}, &model.User{ID: 9, Username: "carol"}),
		db:       newFakeDB(),
		mentions: &fakeMentions{},
		emitter:  &fakeEmitter{},
		store:    store,
	}
	env.tagRepo = newFakeTagRepo(env.db)
	env.zones = NewZoneResolver(env.forums, store, &cfg.Cache, &cfg.Hierarchy)
	env.tabs = NewTabCache(store, &cfg.Cache)
	env.forumSvc = NewForumService(env.forums, store, env.zones, env.tabs, cfg)
	env.enricher = NewEnricher(env.users, env.forums, env.db, env.zones, cfg.Thread.ExcerptLen)
	env.svc = NewThreadService(ThreadDeps{
		Threads:  env.db,
		Posts:    env.db,
		Forums:   env.forumSvc,
		Zones:    env.zones,
		Enricher: env.enricher,
		Tabs:     env.tabs,
		Tags:     NewTagService(env.tagRepo, env.tagRepo),
		Mentions: env.mentions,
		Emitter:  env.emitter,
		Config:   &cfg.Thread,
	})
	return env
}

// seed 生成 n 个主题，作者在 authors 中轮换
func (e *testEnv) seed(n int, forumID int64, authors ...int64) []*model.Thread {
	if len(authors) == 0 {
		authors = []int64{7}
	}
	out := make([]*model.Thread, 0, n)
	for i := 0; i < n; i++ {
		id := int64(1000 + i)
		th := &model.Thread{
			ID:          id,
			Title:       "Thread number " + string(rune('a'+i%26)),
			Slug:        "thread-" + string(rune('a'+i%26)),
			StructureID: forumID,
			UserID:      authors[i%len(authors)],
			ViewCount:   int64((i * 37) % 11),
			PostCount:   int64(1 + (i*13)%7),
			HotScore:    float64((i * 7) % 5),
			CreatedAt:   baseTime.Add(time.Duration(i%9) * time.Minute),
			LastPostAt:  baseTime.Add(time.Duration(i) * time.Minute),
		}
		e.db.add(th, "first post of thread "+string(rune('a'+i%26)))
		out = append(out, th)
	}
	return out
}
