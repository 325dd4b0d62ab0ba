package interview

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"Alora/internal/models"
	"Alora/pkg/backend"
	"Alora/pkg/errors"
	"Alora/pkg/media"
	"Alora/pkg/metrics"
	"Alora/pkg/scheduler"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusEnding   Status = "ending"
)

const (
	EndedByTime = "time"
	EndedByUser = "user"

	NoticeIdleDisconnect = "Agent disconnected due to inactivity. Press the green button to resume."

	DefaultDuration       = 600 * time.Second
	DefaultLowTime        = 30 * time.Second
	DefaultSummaryTimeout = 2 * time.Minute
)

var (
	ErrMissingSession  = errors.Sentinel(errors.CodeInvalidInput, "Missing session id for summary.")
	ErrEmptyTranscript = errors.Sentinel(errors.CodeInvalidInput, "No transcript captured to summarize.")
	ErrSessionBusy     = errors.Sentinel(errors.CodeConflict, "Session is busy.")
	ErrStartCanceled   = errors.Sentinel(errors.CodeConflict, "Session start was canceled.")
	ErrClosed          = errors.Sentinel(errors.CodeConflict, "Session is closed.")
)

// SideEffect 尽力而为的附带操作结果，失败不影响主流程
type SideEffect struct {
	Attempted bool
	Err       error
}

func (s SideEffect) MarshalJSON() ([]byte, error) {
	out := struct {
		Attempted bool   `json:"attempted"`
		Error     string `json:"error,omitempty"`
	}{Attempted: s.Attempted}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

type Stats struct {
	Total int `json:"turns_total"`
	Agent int `json:"turns_ai"`
	User  int `json:"turns_user"`
}

// Completion 一次 End 的完整结果
type Completion struct {
	Reason        string                    `json:"ended_by"`
	SessionID     string                    `json:"session_id"`
	InterviewID   string                    `json:"interview_id,omitempty"`
	Transcript    []backend.TranscriptEntry `json:"transcript"`
	Stats         Stats                     `json:"stats"`
	ActualSeconds int                       `json:"actual_duration_seconds"`
	Summary       *backend.Summary          `json:"summary"`
	TraceID       string                    `json:"trace_id,omitempty"`
	Err           error                     `json:"-"`
	Persist       SideEffect                `json:"persist"`
	Invalidate    SideEffect                `json:"invalidate"`
	Notify        SideEffect                `json:"notify"`
}

type Deps struct {
	Sessions    SessionService
	Transport   media.Transport
	Summarizer  Summarizer
	Recorder    Recorder
	Invalidator Invalidator
	Notifier    Notifier
	EventLog    EventLog
	Events      EventSink
	Clock       scheduler.Clock
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Tracer      *metrics.Tracer
}

type Options struct {
	Owner            string
	UserID           string
	Email            string
	Duration         time.Duration
	LowTime          time.Duration
	Markers          []string
	SummaryTimeout   time.Duration
	PartialDebounce  time.Duration
	SpeakingReset    time.Duration
	PresenceDebounce time.Duration
}

type autoStart struct {
	at      time.Time
	enabled bool
	due     bool
	fired   bool
	timer   scheduler.Timer
}

type pendingEnd struct {
	waiters []chan Completion
}

// Controller 单个会话的生命周期：idle → starting → running → ending → idle
//
// 所有状态在 mu 下修改；定时器回调先拿锁再检查代数，断开连接等外部调用放进 deferred 在解锁后执行。
type Controller struct {
	mu       sync.Mutex
	deferred []func()

	deps Deps
	opts Options
	log  *zap.Logger

	transcript *Transcript
	presence   *PresenceMonitor

	status        Status
	sessionID     string
	duration      time.Duration
	remaining     int
	startedAt     time.Time
	elapsed       time.Duration
	agentDetected bool
	agentLogged   string // 最近一次落库的 agent 事件，停止后保留，Reset 时清空
	visible       bool
	idleStopped   bool
	completed     bool
	closed        bool
	notice        string
	errMsg        string
	summary       *backend.Summary

	room      media.Room
	unsubs    []func()
	countdown scheduler.Timer
	countGen  uint64
	startGen  uint64
	endGen    uint64
	pending   *pendingEnd
	auto      autoStart
	autoGen   uint64
}

func NewController(deps Deps, opts Options) *Controller {
	if deps.Clock == nil {
		deps.Clock = scheduler.Real()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = nopSink{}
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.LowTime <= 0 {
		opts.LowTime = DefaultLowTime
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = DefaultSummaryTimeout
	}
	c := &Controller{
		deps:     deps,
		opts:     opts,
		log:      deps.Log.With(zap.String("owner", opts.Owner)),
		status:   StatusIdle,
		duration: opts.Duration,
	}
	c.remaining = seconds(c.duration)
	c.transcript = NewTranscript(TranscriptOptions{
		Clock:           deps.Clock,
		Markers:         opts.Markers,
		PartialDebounce: opts.PartialDebounce,
		SpeakingReset:   opts.SpeakingReset,
		Emit:            c.publish,
	})
	c.presence = NewPresenceMonitor(PresenceOptions{
		Clock:        deps.Clock,
		Markers:      opts.Markers,
		Debounce:     opts.PresenceDebounce,
		OnTransition: c.onPresence,
	})
	return c
}

type nopSink struct{}

func (nopSink) Publish(string, string, any) {}

func (c *Controller) unlock() {
	after := c.deferred
	c.deferred = nil
	c.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

func (c *Controller) publish(kind string, data any) {
	c.deps.Events.Publish(c.opts.Owner, kind, data)
}

func (c *Controller) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.publish("status", map[string]any{"status": s, "session_id": c.sessionID})
}

// SetIdentity 登录状态变化时更新
func (c *Controller) SetIdentity(userID, email string) {
	c.mu.Lock()
	c.opts.UserID, c.opts.Email = userID, email
	c.mu.Unlock()
}

// Prepare 空闲时指定会话与时长，换会话会清空旧内容
func (c *Controller) Prepare(sessionID string, duration time.Duration) error {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}
	if c.status != StatusIdle {
		return ErrSessionBusy
	}
	if sessionID != "" && sessionID != c.sessionID {
		c.resetLocked()
		c.sessionID = sessionID
	}
	if duration > 0 {
		c.duration = duration
	}
	c.remaining = seconds(c.duration)
	c.publish("countdown", c.countdownLocked())
	return nil
}

// Start 运行中重复调用不做任何事；连接失败回到 idle，不重试
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.unlock()
		return ErrClosed
	case c.status == StatusRunning || c.status == StatusStarting:
		c.unlock()
		return nil
	case c.status == StatusEnding:
		c.unlock()
		return ErrSessionBusy
	}
	if c.completed {
		// 上一场已经总结完，开新会话
		c.resetLocked()
	}
	c.startGen++
	gen := c.startGen
	sid := c.sessionID
	minutes := int(math.Ceil(c.duration.Minutes()))
	userID := c.opts.UserID
	c.errMsg = ""
	c.notice = ""
	c.setStatusLocked(StatusStarting)
	c.unlock()

	fail := func(err error, msg string) error {
		c.mu.Lock()
		defer c.unlock()
		if gen == c.startGen && c.status == StatusStarting {
			c.errMsg = msg
			c.setStatusLocked(StatusIdle)
			c.publish("error", map[string]string{"message": msg})
		}
		c.log.Warn(msg, zap.Error(err))
		return errors.WrapCode(err, errors.CodeExternal, msg)
	}

	if sid == "" {
		created, err := c.deps.Sessions.CreateSession(ctx, minutes)
		if err != nil {
			return fail(err, "Unable to create a session.")
		}
		sid = created
	}
	token, err := c.deps.Sessions.IssueMediaToken(ctx, sid)
	if err != nil {
		return fail(err, "Unable to get a media token.")
	}
	room, err := c.deps.Transport.Connect(ctx, sid, token)
	if err != nil {
		return fail(err, "Unable to connect to the interview room.")
	}

	if userID != "" && c.deps.Recorder != nil {
		if row, err := c.deps.Recorder.MarkStarted(ctx, userID, sid); err != nil {
			c.log.Warn("mark interview started failed", zap.String("session_id", sid), zap.Error(err))
		} else if c.deps.Invalidator != nil {
			if err := c.deps.Invalidator.InvalidateInterviews(ctx, userID); err != nil {
				c.log.Warn("invalidate interview list failed", zap.String("interview_id", row.ID), zap.Error(err))
			}
		}
	}

	c.mu.Lock()
	defer c.unlock()
	if gen != c.startGen || c.closed || c.status != StatusStarting {
		c.deferred = append(c.deferred, func() { _ = room.Disconnect() })
		return ErrStartCanceled
	}
	c.sessionID = sid
	c.room = room
	c.idleStopped = false
	c.remaining = seconds(c.duration)
	c.startedAt = c.deps.Clock.Now()
	c.unsubs = append(c.unsubs,
		room.OnTranscriptionSegment(c.transcript.Handle),
		room.OnParticipantChange(c.presence.Notify),
	)
	c.presence.Attach(room.Participants)
	c.countGen++
	cg := c.countGen
	c.countdown = scheduler.Every(c.deps.Clock, time.Second, func() { c.tick(cg) })
	c.setStatusLocked(StatusRunning)
	c.publish("countdown", c.countdownLocked())
	c.deps.Metrics.SessionStarted()
	c.log.Info("session started", zap.String("session_id", sid))
	return nil
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.unlock()
	if gen != c.countGen || c.status != StatusRunning {
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	c.publish("countdown", c.countdownLocked())
	if c.remaining == 0 {
		c.endLocked(EndedByTime)
	}
}

func (c *Controller) countdownLocked() map[string]any {
	return map[string]any{"remaining_seconds": c.remaining, "low_time": c.lowTimeLocked()}
}

func (c *Controller) lowTimeLocked() bool {
	return c.status == StatusRunning && c.remaining <= seconds(c.opts.LowTime)
}

// End 第一次调用生效；结束中再次调用得到同一结果，已完成后为空操作
func (c *Controller) End(reason string) (<-chan Completion, bool) {
	c.mu.Lock()
	defer c.unlock()
	if c.closed || c.completed || c.status == StatusStarting {
		return nil, false
	}
	ch := make(chan Completion, 1)
	if c.status == StatusEnding {
		if c.pending != nil {
			c.pending.waiters = append(c.pending.waiters, ch)
			return ch, false
		}
		return nil, false
	}
	if reason != EndedByTime {
		reason = EndedByUser
	}
	c.pending = &pendingEnd{waiters: []chan Completion{ch}}
	c.endLocked(reason)
	return ch, true
}

func (c *Controller) endLocked(reason string) {
	if c.pending == nil {
		c.pending = &pendingEnd{}
	}
	p := c.pending
	c.stopRunningLocked()
	c.setStatusLocked(StatusEnding)

	final := c.transcript.Final()
	comp := Completion{
		Reason:        reason,
		SessionID:     c.sessionID,
		Transcript:    Entries(final),
		ActualSeconds: int(math.Round(c.elapsed.Seconds())),
	}
	for _, m := range final {
		comp.Stats.Total++
		if m.Agent {
			comp.Stats.Agent++
		} else {
			comp.Stats.User++
		}
	}

	switch {
	case comp.SessionID == "":
		c.failEndLocked(p, comp, ErrMissingSession)
		return
	case len(final) == 0:
		c.failEndLocked(p, comp, ErrEmptyTranscript)
		return
	}

	c.endGen++
	gen := c.endGen
	target := seconds(c.duration)
	userID := c.opts.UserID
	c.deferred = append(c.deferred, func() { go c.finish(gen, p, comp, target, userID) })
}

func (c *Controller) failEndLocked(p *pendingEnd, comp Completion, err error) {
	comp.Err = err
	c.errMsg = errors.GetMessage(err)
	c.setStatusLocked(StatusIdle)
	c.publish("error", map[string]string{"message": c.errMsg})
	c.deliverLocked(p, comp)
}

func (c *Controller) deliverLocked(p *pendingEnd, comp Completion) {
	for _, ch := range p.waiters {
		ch <- comp
		close(ch)
	}
	p.waiters = nil
	if c.pending == p {
		c.pending = nil
	}
}

// finish 总结 → 落库 → 失效缓存 → 站内通知；后三步失败只记录
func (c *Controller) finish(gen uint64, p *pendingEnd, comp Completion, target int, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.SummaryTimeout)
	defer cancel()
	ctx, root := c.deps.Tracer.StartSpan(ctx, "session_end", "session_id", comp.SessionID, "ended_by", comp.Reason)
	comp.TraceID = metrics.TraceID(ctx)
	log := c.log.With(zap.String("session_id", comp.SessionID), zap.String("ended_by", comp.Reason))
	if comp.TraceID != "" {
		log = log.With(zap.String("trace_id", comp.TraceID))
	}

	sctx, span := c.deps.Tracer.StartSpan(ctx, "summarize")
	sum, err := c.deps.Summarizer.Summarize(sctx, comp.SessionID, backend.SummaryRequest{
		Transcript:            comp.Transcript,
		EndedBy:               comp.Reason,
		TargetDurationSeconds: target,
		ActualDurationSeconds: comp.ActualSeconds,
		TurnsTotal:            comp.Stats.Total,
		TurnsUser:             comp.Stats.User,
		TurnsAI:               comp.Stats.Agent,
	})
	c.deps.Tracer.EndSpan(span, err)
	if err != nil {
		log.Warn("summarize failed", zap.Error(err))
		comp.Err = errors.Wrap(err, "Unable to generate the interview summary.")
		c.deps.Metrics.RecordBusinessOperation("session_end", "error")
	} else {
		comp.Summary = sum
		c.deps.Metrics.RecordBusinessOperation("session_end", "ok")
		if userID != "" {
			c.persist(ctx, log, &comp, target, userID)
		}
	}
	root.SetTag("interview_id", comp.InterviewID)
	c.deps.Tracer.EndSpan(root, comp.Err)

	c.mu.Lock()
	defer c.unlock()
	if gen == c.endGen && c.status == StatusEnding {
		c.setStatusLocked(StatusIdle)
		if comp.Err != nil {
			c.errMsg = errors.GetMessage(comp.Err)
			c.publish("error", map[string]string{"message": c.errMsg})
		} else {
			c.completed = true
			c.summary = comp.Summary
			c.publish("summary", comp)
		}
	}
	c.deliverLocked(p, comp)
}

func (c *Controller) persist(ctx context.Context, log *zap.Logger, comp *Completion, target int, userID string) {
	if c.deps.Recorder == nil {
		return
	}
	comp.Persist.Attempted = true
	actual := comp.ActualSeconds
	in := models.CompleteInput{
		UserID:                userID,
		SessionID:             comp.SessionID,
		Transcript:            comp.Transcript,
		Summary:               *comp.Summary,
		TargetDurationSeconds: &target,
		TurnsTotal:            comp.Stats.Total,
	}
	if actual > 0 {
		in.ActualDurationSeconds = &actual
	}
	pctx, span := c.deps.Tracer.StartSpan(ctx, "persist")
	row, err := c.deps.Recorder.CompleteInterview(pctx, in)
	c.deps.Tracer.EndSpan(span, err)
	if err != nil {
		comp.Persist.Err = err
		log.Warn("persist interview failed", zap.Error(err))
		return
	}
	comp.InterviewID = row.ID

	if c.deps.Invalidator != nil {
		comp.Invalidate.Attempted = true
		ictx, span := c.deps.Tracer.StartSpan(ctx, "invalidate")
		err := c.deps.Invalidator.InvalidateInterviews(ictx, userID, row.ID)
		c.deps.Tracer.EndSpan(span, err)
		if err != nil {
			comp.Invalidate.Err = err
			log.Warn("invalidate interview cache failed", zap.Error(err))
		}
	}
	if c.deps.Notifier != nil {
		comp.Notify.Attempted = true
		nctx, span := c.deps.Tracer.StartSpan(ctx, "notify")
		err := c.deps.Notifier.Notify(nctx, &models.Notification{
			UserID:  userID,
			Type:    "interview_completed",
			Title:   "Interview completed",
			Message: "Your interview summary is ready.",
			Payload: map[string]any{"interview_id": row.ID, "session_id": comp.SessionID, "ended_by": comp.Reason},
		})
		c.deps.Tracer.EndSpan(span, err)
		if err != nil {
			comp.Notify.Err = err
			log.Warn("interview completed notification failed", zap.Error(err))
		}
	}
}

// onPresence agent 在场状态变化；曾经出现过的 agent 离开即视为空闲断开
func (c *Controller) onPresence(present, ever bool) {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return
	}
	c.agentDetected = present
	c.publish("agent", map[string]bool{"detected": present, "ever_detected": ever})

	kind := "agent_disconnected"
	if present {
		kind = "agent_connected"
	}
	// 停止时 presence 被重置，重新挂载会再报一次在场，这里按上次落库的值去重
	if kind != c.agentLogged {
		c.agentLogged = kind
		c.logEventLocked(kind, nil)
	}

	if !present && ever && c.status == StatusRunning {
		c.stopRunningLocked()
		c.idleStopped = true
		c.notice = NoticeIdleDisconnect
		c.setStatusLocked(StatusIdle)
		c.publish("notice", map[string]string{"message": NoticeIdleDisconnect})
		c.logEventLocked("idle_disconnect", nil)
		c.log.Info("agent left, session stopped", zap.String("session_id", c.sessionID))
	}
}

func (c *Controller) logEventLocked(kind string, payload map[string]any) {
	if c.deps.EventLog == nil || c.opts.UserID == "" || c.sessionID == "" {
		return
	}
	ev := &models.SessionEvent{UserID: c.opts.UserID, SessionID: c.sessionID, EventType: kind, Payload: payload}
	c.deferred = append(c.deferred, func() {
		if err := c.deps.EventLog.LogSessionEvent(context.Background(), ev); err != nil {
			c.log.Warn("log session event failed", zap.String("event", kind), zap.Error(err))
		}
	})
}

// stopRunningLocked 停掉倒计时、解除订阅并断开媒体；转写内容保留
func (c *Controller) stopRunningLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	c.countGen++
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.presence.Detach()
	c.transcript.Stop()
	c.agentDetected = false
	if c.room != nil {
		room := c.room
		c.room = nil
		c.deferred = append(c.deferred, func() {
			if err := room.Disconnect(); err != nil {
				c.log.Debug("room disconnect", zap.Error(err))
			}
		})
	}
	if c.status == StatusRunning {
		c.elapsed += c.deps.Clock.Now().Sub(c.startedAt)
		c.deps.Metrics.SessionStopped()
	}
}

// SetVisible 页面可见性；到期但未触发的自动开始在可见时触发
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.unlock()
	c.visible = visible
	c.maybeAutoStartLocked()
}

// ScheduleAutoStart 安排一次自动开始；过去的时间点在页面可见时立即触发
func (c *Controller) ScheduleAutoStart(at time.Time, enabled bool) {
	c.mu.Lock()
	defer c.unlock()
	if c.auto.timer != nil {
		c.auto.timer.Stop()
	}
	c.autoGen++
	c.auto = autoStart{at: at, enabled: enabled}
	if !enabled {
		return
	}
	d := at.Sub(c.deps.Clock.Now())
	if d <= 0 {
		c.auto.due = true
		c.maybeAutoStartLocked()
		return
	}
	gen := c.autoGen
	c.auto.timer = c.deps.Clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.unlock()
		if gen != c.autoGen {
			return
		}
		c.auto.timer = nil
		c.auto.due = true
		c.maybeAutoStartLocked()
	})
}

func (c *Controller) maybeAutoStartLocked() {
	a := &c.auto
	if !a.enabled || !a.due || a.fired || !c.visible || c.closed {
		return
	}
	a.fired = true
	if c.status != StatusIdle {
		// 已经手动开始，自动开始作废
		return
	}
	c.deferred = append(c.deferred, func() {
		if err := c.Start(context.Background()); err != nil {
			c.log.Warn("auto start failed", zap.Error(err))
		}
	})
}

// Reset 丢弃当前会话的一切，回到初始空闲状态
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.startGen++
	c.endGen++
	c.stopRunningLocked()
	c.transcript.Reset()
	c.presence.Reset()
	if c.auto.timer != nil {
		c.auto.timer.Stop()
	}
	c.autoGen++
	c.auto = autoStart{}
	c.pending = nil
	c.sessionID = ""
	c.startedAt = time.Time{}
	c.elapsed = 0
	c.remaining = seconds(c.duration)
	c.idleStopped = false
	c.completed = false
	c.agentLogged = ""
	c.summary = nil
	c.notice = ""
	c.errMsg = ""
	c.setStatusLocked(StatusIdle)
}

// Close 释放会话资源，之后的调用都返回 ErrClosed
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return
	}
	c.resetLocked()
	c.closed = true
}

type Snapshot struct {
	SessionID         string           `json:"session_id"`
	Status            Status           `json:"status"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	DurationSeconds   int              `json:"duration_seconds"`
	RemainingSeconds  int              `json:"remaining_seconds"`
	LowTime           bool             `json:"low_time"`
	AgentDetected     bool             `json:"agent_detected"`
	AgentEverDetected bool             `json:"agent_ever_detected"`
	Visible           bool             `json:"visible"`
	Speaking          Speaker          `json:"speaking"`
	Messages          []Message        `json:"messages"`
	Streaming         *Message         `json:"streaming"`
	Notice            string           `json:"notice,omitempty"`
	Error             string           `json:"error,omitempty"`
	Summary           *backend.Summary `json:"summary,omitempty"`
	AutoStartAt       *time.Time       `json:"auto_start_at,omitempty"`
}

// Dormant 空闲、没有等待中的总结或自动开始，可以安全回收
func (c *Controller) Dormant() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	pendingAuto := c.auto.enabled && !c.auto.fired
	return c.status == StatusIdle && c.pending == nil && !pendingAuto
}

// Owns 当前正在进行的会话是否为 sessionID
func (c *Controller) Owns(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || sessionID == "" || c.sessionID != sessionID {
		return false
	}
	return c.status == StatusRunning || c.status == StatusStarting
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.unlock()
	s := Snapshot{
		SessionID:         c.sessionID,
		Status:            c.status,
		DurationSeconds:   seconds(c.duration),
		RemainingSeconds:  c.remaining,
		LowTime:           c.lowTimeLocked(),
		AgentDetected:     c.agentDetected,
		AgentEverDetected: c.presence.EverDetected(),
		Visible:           c.visible,
		Speaking:          c.transcript.Speaking(),
		Messages:          c.transcript.Messages(),
		Streaming:         c.transcript.Streaming(),
		Notice:            c.notice,
		Error:             c.errMsg,
		Summary:           c.summary,
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		s.StartedAt = &t
	}
	if c.auto.enabled && !c.auto.fired {
		t := c.auto.at
		s.AutoStartAt = &t
	}
	return s
}

func seconds(d time.Duration) int { return int(d / time.Second) }
