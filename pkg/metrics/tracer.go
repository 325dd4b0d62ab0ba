package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SpanStatus 跨度状态
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

func (s SpanStatus) String() string {
	switch s {
	case SpanStatusOK:
		return "ok"
	case SpanStatusError:
		return "error"
	}
	return "unset"
}

// Span 链路中的一段
type Span struct {
	ID       string            `json:"id"`
	TraceID  string            `json:"trace_id"`
	ParentID string            `json:"parent_id,omitempty"`
	Name     string            `json:"name"`
	Start    time.Time         `json:"start_time"`
	End      time.Time         `json:"end_time"`
	Duration time.Duration     `json:"duration"`
	Tags     map[string]string `json:"tags,omitempty"`
	Status   SpanStatus        `json:"status"`
	Err      error             `json:"-"`
	mu       sync.Mutex
}

// SetTag nil 跨度上为空操作
func (s *Span) SetTag(key, value string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Tags[key] = value
	s.mu.Unlock()
}

// Tracer 进程内链路追踪，只保留最近 max 个结束的跨度；结束时按名字记录耗时
type Tracer struct {
	mu      sync.Mutex
	done    []*Span
	max     int
	metrics *Metrics
	log     *zap.Logger
}

func NewTracer(max int, m *Metrics, log *zap.Logger) *Tracer {
	if max <= 0 {
		max = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracer{max: max, metrics: m, log: log}
}

type spanContextKey struct{}

// StartSpan 开始一个跨度；ctx 里已有跨度时作为其子跨度。tags 为 key/value 交替
func (t *Tracer) StartSpan(ctx context.Context, name string, tags ...string) (context.Context, *Span) {
	if t == nil {
		return ctx, nil
	}
	span := &Span{ID: uuid.NewString(), Name: name, Start: time.Now(), Tags: make(map[string]string)}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.ID
	} else {
		span.TraceID = uuid.NewString()
	}
	for i := 0; i+1 < len(tags); i += 2 {
		span.Tags[tags[i]] = tags[i+1]
	}
	return context.WithValue(ctx, spanContextKey{}, span), span
}

// EndSpan 结束跨度并记录耗时
func (t *Tracer) EndSpan(span *Span, err error) {
	if t == nil || span == nil {
		return
	}
	span.mu.Lock()
	span.End = time.Now()
	span.Duration = span.End.Sub(span.Start)
	span.Status = SpanStatusOK
	if err != nil {
		span.Status = SpanStatusError
		span.Err = err
	}
	name, status, d := span.Name, span.Status.String(), span.Duration
	span.mu.Unlock()

	t.metrics.RecordSpan(name, status, d)
	t.log.Debug("span finished", zap.String("trace_id", span.TraceID), zap.String("span", name),
		zap.String("status", status), zap.Duration("took", d), zap.Error(err))

	t.mu.Lock()
	t.done = append(t.done, span)
	if len(t.done) > t.max {
		// 丢掉最旧的一半
		t.done = append([]*Span(nil), t.done[len(t.done)-t.max/2:]...)
	}
	t.mu.Unlock()
}

// Trace 返回某条链路已结束的跨度，按结束先后排列
func (t *Tracer) Trace(traceID string) []*Span {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Span
	for _, s := range t.done {
		if s.TraceID == traceID {
			out = append(out, s)
		}
	}
	return out
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}

// TraceID ctx 中没有跨度时返回空串
func TraceID(ctx context.Context) string {
	if span := SpanFromContext(ctx); span != nil {
		return span.TraceID
	}
	return ""
}
