package history

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"Alora/internal/models"
	"Alora/pkg/cache"
	"Alora/pkg/errors"
)

const listLimit = 20

var ErrUnauthorized = errors.Sentinel(errors.CodeUnauthorized, "Unauthorized")

type Repository interface {
	ListInterviews(ctx context.Context, userID string, limit int) ([]models.InterviewListItem, error)
	GetInterviewDetail(ctx context.Context, userID, id string) (*models.InterviewDetail, error)
}

// Keys 缓存键按用户隔离，详情再按面试隔离
type Keys struct {
	Prefix string
}

func (k Keys) List(userID string) string {
	return k.Prefix + ":interviews:list:" + userID
}

func (k Keys) Detail(userID, interviewID string) string {
	return k.Prefix + ":interviews:detail:" + userID + ":" + interviewID
}

// Operation 由键推导指标标签
func (k Keys) Operation(key string) string {
	switch {
	case strings.HasPrefix(key, k.Prefix+":interviews:list:"):
		return "list"
	case strings.HasPrefix(key, k.Prefix+":interviews:detail:"):
		return "detail"
	}
	return "get"
}

type Service struct {
	repo Repository
	rt   *cache.ReadThrough
	keys Keys
	log  *zap.Logger
}

func NewService(repo Repository, rt *cache.ReadThrough, keys Keys, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, rt: rt, keys: keys, log: log}
}

func (s *Service) Keys() Keys { return s.keys }

// ListInterviews 匿名用户返回空列表，不碰缓存
func (s *Service) ListInterviews(ctx context.Context, userID string) ([]models.InterviewListItem, error) {
	if userID == "" {
		return []models.InterviewListItem{}, nil
	}
	res, err := cache.GetOrLoad(ctx, s.rt, s.keys.List(userID), func(ctx context.Context) ([]models.InterviewListItem, error) {
		return s.repo.ListInterviews(ctx, userID, listLimit)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Unable to load interviews.")
	}
	if res.Value == nil {
		return []models.InterviewListItem{}, nil
	}
	return res.Value, nil
}

func (s *Service) GetInterviewDetail(ctx context.Context, userID, id string) (*models.InterviewDetail, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, models.ErrInterviewNotFound
	}
	res, err := cache.GetOrLoad(ctx, s.rt, s.keys.Detail(userID, id), func(ctx context.Context) (*models.InterviewDetail, error) {
		return s.repo.GetInterviewDetail(ctx, userID, id)
	})
	if err != nil {
		if errors.Is(err, models.ErrInterviewNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "Unable to load interview.")
	}
	return res.Value, nil
}

// InvalidateInterviews 删除列表键，以及给定面试的详情键
func (s *Service) InvalidateInterviews(ctx context.Context, userID string, interviewIDs ...string) error {
	if userID == "" {
		return nil
	}
	keys := []string{s.keys.List(userID)}
	for _, id := range interviewIDs {
		if id != "" {
			keys = append(keys, s.keys.Detail(userID, id))
		}
	}
	if err := s.rt.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("invalidate interview cache failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}
