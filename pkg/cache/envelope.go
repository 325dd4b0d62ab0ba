package cache

import (
	"bytes"
	"encoding/json"
	"time"
)

// Freshness 缓存条目的新鲜度
type Freshness int

const (
	Absent Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// Policy TTL 内为新鲜，TTL 之后的 Stale 窗口内仍可返回但需要后台刷新
type Policy struct {
	TTL   time.Duration
	Stale time.Duration
}

// Expiry 写入存储时使用的过期时间，窗口关闭后由存储自行回收
func (p Policy) Expiry() time.Duration {
	e := p.TTL + p.Stale
	if e < time.Second {
		return time.Second
	}
	return e
}

// Classify 按条目年龄判定新鲜度；时钟回拨导致的负年龄视为新鲜
func (p Policy) Classify(age time.Duration) Freshness {
	switch {
	case age <= p.TTL:
		return Fresh
	case age <= p.TTL+p.Stale:
		return Stale
	default:
		return Absent
	}
}

// envelope 存储格式：{"cached_at": <毫秒时间戳>, "payload": ...}
type envelope struct {
	CachedAt *int64          `json:"cached_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode 把 payload 与写入时刻封装为存储格式
func Encode(payload any, now time.Time) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	ms := now.UnixMilli()
	out, err := json.Marshal(envelope{CachedAt: &ms, Payload: body})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ComputeFreshness 解析存储中的原始值；无法解析、缺少 cached_at 或 payload 的条目一律视为 Absent
func ComputeFreshness(raw string, policy Policy, now time.Time) (Freshness, json.RawMessage) {
	if raw == "" {
		return Absent, nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Absent, nil
	}
	if env.CachedAt == nil || len(bytes.TrimSpace(env.Payload)) == 0 {
		return Absent, nil
	}
	age := now.Sub(time.UnixMilli(*env.CachedAt))
	f := policy.Classify(age)
	if f == Absent {
		return Absent, nil
	}
	return f, env.Payload
}
