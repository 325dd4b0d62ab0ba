package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"Alora/pkg/metrics"
	"Alora/pkg/scheduler"
)

// Outcome 描述一次读穿透的结果来源
type Outcome int

const (
	OutcomeFresh Outcome = iota + 1
	OutcomeStale
	OutcomeLoaded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeStale:
		return "stale"
	case OutcomeLoaded:
		return "loaded"
	}
	return "unknown"
}

type Loader[T any] func(ctx context.Context) (T, error)

// Result 主结果与附带的副作用结果分开返回
type Result[T any] struct {
	Value   T
	Outcome Outcome
	// Refresh 仅在 OutcomeStale 时非空；后台刷新结束后收到一次结果，nil 为成功
	Refresh <-chan error
	// WriteErr 回源成功但写缓存失败，已吞掉
	WriteErr error
}

// ReadThrough 读穿透协调器：新鲜直接返回，过期窗口内先返回旧值再后台刷新，缺失则同步回源
type ReadThrough struct {
	store          Store
	policy         Policy
	clock          scheduler.Clock
	name           string
	label          func(key string) string
	metrics        *metrics.Metrics
	log            *zap.Logger
	refreshTimeout time.Duration
	group          singleflight.Group
}

type Option func(*ReadThrough)

func WithClock(c scheduler.Clock) Option { return func(rt *ReadThrough) { rt.clock = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(rt *ReadThrough) { rt.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(rt *ReadThrough) { rt.log = l } }

// WithName 指标中的 cache_type 标签
func WithName(name string) Option { return func(rt *ReadThrough) { rt.name = name } }

// WithOperationLabel 由缓存键推导指标中的 operation 标签
func WithOperationLabel(fn func(key string) string) Option {
	return func(rt *ReadThrough) { rt.label = fn }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(rt *ReadThrough) { rt.refreshTimeout = d }
}

func NewReadThrough(store Store, policy Policy, opts ...Option) *ReadThrough {
	rt := &ReadThrough{
		store:          store,
		policy:         policy,
		clock:          scheduler.Real(),
		name:           "default",
		label:          func(string) string { return "get" },
		log:            zap.NewNop(),
		refreshTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *ReadThrough) Policy() Policy { return rt.policy }

// GetOrLoad 读取 key；存储读失败与格式错误都按未命中处理，只有 loader 的错误会返回给调用方
func GetOrLoad[T any](ctx context.Context, rt *ReadThrough, key string, loader Loader[T]) (Result[T], error) {
	op := rt.label(key)
	raw, ok, err := rt.store.Get(ctx, key)
	if err != nil {
		rt.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		ok = false
	}
	if ok {
		freshness, payload := ComputeFreshness(raw, rt.policy, rt.clock.Now())
		if freshness != Absent {
			var v T
			if err := json.Unmarshal(payload, &v); err == nil {
				if freshness == Fresh {
					rt.metrics.RecordCacheHit(rt.name, op)
					return Result[T]{Value: v, Outcome: OutcomeFresh}, nil
				}
				rt.metrics.RecordCacheStale(rt.name, op)
				return Result[T]{Value: v, Outcome: OutcomeStale, Refresh: refresh(ctx, rt, key, loader)}, nil
			}
			rt.log.Debug("cache payload does not decode, treating as miss", zap.String("key", key))
		}
	}

	rt.metrics.RecordCacheMiss(rt.name, op)
	v, err := loader(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	res := Result[T]{Value: v, Outcome: OutcomeLoaded}
	if err := rt.write(ctx, key, v); err != nil {
		rt.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		res.WriteErr = err
	}
	return res, nil
}

// refresh 与请求生命周期脱钩；同一 key 的并发刷新合并为一次
func refresh[T any](ctx context.Context, rt *ReadThrough, key string, loader Loader[T]) <-chan error {
	done := make(chan error, 1)
	base := context.WithoutCancel(ctx)
	go func() {
		_, err, _ := rt.group.Do(key, func() (any, error) {
			rctx, cancel := context.WithTimeout(base, rt.refreshTimeout)
			defer cancel()
			v, err := loader(rctx)
			if err != nil {
				return nil, err
			}
			return nil, rt.write(rctx, key, v)
		})
		if err != nil {
			rt.metrics.RecordCacheRefreshFailure(rt.name, rt.label(key))
			rt.log.Warn("background cache refresh failed", zap.String("key", key), zap.Error(err))
		}
		done <- err
	}()
	return done
}

func (rt *ReadThrough) write(ctx context.Context, key string, v any) error {
	raw, err := Encode(v, rt.clock.Now())
	if err != nil {
		return err
	}
	return rt.store.Set(ctx, key, raw, rt.policy.Expiry())
}

// Invalidate 删除受影响的键
func (rt *ReadThrough) Invalidate(ctx context.Context, keys ...string) error {
	return rt.store.Delete(ctx, keys...)
}
