package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Alora/internal/models"
	"Alora/pkg/cache"
	"Alora/pkg/errors"
)

type fakeRepo struct {
	mu          sync.Mutex
	listCalls   int
	detailCalls int
	items       []models.InterviewListItem
	details     map[string]*models.InterviewDetail
}

func (f *fakeRepo) ListInterviews(_ context.Context, userID string, limit int) ([]models.InterviewListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.items, nil
}

func (f *fakeRepo) GetInterviewDetail(_ context.Context, userID, id string) (*models.InterviewDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	d, ok := f.details[userID+"/"+id]
	if !ok {
		return nil, models.ErrInterviewNotFound
	}
	return d, nil
}

func newService(t *testing.T, repo *fakeRepo) (*Service, cache.Store) {
	t.Helper()
	store, err := cache.NewLRUStore(cache.LocalConfig{MaxSize: 100})
	require.NoError(t, err)
	keys := Keys{Prefix: "alora"}
	rt := cache.NewReadThrough(store, cache.Policy{TTL: time.Minute, Stale: 2 * time.Minute}, cache.WithOperationLabel(keys.Operation))
	return NewService(repo, rt, keys, nil), store
}

func TestKeys(t *testing.T) {
	k := Keys{Prefix: "alora"}
	assert.Equal(t, "alora:interviews:list:u1", k.List("u1"))
	assert.Equal(t, "alora:interviews:detail:u1:i9", k.Detail("u1", "i9"))
	assert.Equal(t, "list", k.Operation(k.List("u1")))
	assert.Equal(t, "detail", k.Operation(k.Detail("u1", "i9")))
	assert.Equal(t, "get", k.Operation("other"))
}

func TestListInterviewsCached(t *testing.T) {
	repo := &fakeRepo{items: []models.InterviewListItem{{ID: "i1", SessionID: "s1", Status: "completed"}}}
	svc, _ := newService(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		items, err := svc.ListInterviews(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}
	assert.Equal(t, 1, repo.listCalls)

	require.NoError(t, svc.InvalidateInterviews(ctx, "u1"))
	_, err := svc.ListInterviews(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestAnonymousReads(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newService(t, repo)

	items, err := svc.ListInterviews(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Zero(t, repo.listCalls)

	_, err = svc.GetInterviewDetail(context.Background(), "", "i1")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.NoError(t, svc.InvalidateInterviews(context.Background(), ""))
}

func TestGetInterviewDetail(t *testing.T) {
	repo := &fakeRepo{details: map[string]*models.InterviewDetail{
		"u1/i1": {Interview: models.Interview{ID: "i1", SessionID: "s1"}},
	}}
	svc, store := newService(t, repo)
	ctx := context.Background()

	d, err := svc.GetInterviewDetail(ctx, "u1", "i1")
	require.NoError(t, err)
	assert.Equal(t, "s1", d.Interview.SessionID)
	_, err = svc.GetInterviewDetail(ctx, "u1", "i1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.detailCalls)

	// 未找到不写缓存
	_, err = svc.GetInterviewDetail(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, models.ErrInterviewNotFound))
	assert.Equal(t, 404, errors.HTTPStatus(err))
	_, ok, _ := store.Get(ctx, svc.Keys().Detail("u1", "missing"))
	assert.False(t, ok)

	require.NoError(t, svc.InvalidateInterviews(ctx, "u1", "i1"))
	_, ok, _ = store.Get(ctx, svc.Keys().Detail("u1", "i1"))
	assert.False(t, ok)
}
