package cache

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestFreshnessBoundaries(t *testing.T) {
	policies := []Policy{
		{TTL: 0, Stale: 0},
		{TTL: 60 * time.Second, Stale: 0},
		{TTL: 0, Stale: 120 * time.Second},
		{TTL: 60 * time.Second, Stale: 120 * time.Second},
	}
	for _, p := range policies {
		ages := []time.Duration{
			0,
			p.TTL - time.Millisecond,
			p.TTL,
			p.TTL + time.Millisecond,
			p.TTL + p.Stale,
			p.TTL + p.Stale + time.Millisecond,
			p.TTL + p.Stale + time.Hour,
		}
		for _, age := range ages {
			if age < 0 {
				continue
			}
			t.Run(fmt.Sprintf("ttl=%s stale=%s age=%s", p.TTL, p.Stale, age), func(t *testing.T) {
				var want Freshness
				switch {
				case age <= p.TTL:
					want = Fresh
				case age <= p.TTL+p.Stale:
					want = Stale
				default:
					want = Absent
				}
				raw, err := Encode("v", now.Add(-age))
				require.NoError(t, err)

				got, payload := ComputeFreshness(raw, p, now)
				assert.Equal(t, want, got)
				if want == Absent {
					assert.Nil(t, payload)
				} else {
					assert.JSONEq(t, `"v"`, string(payload))
				}
			})
		}
	}
}

func TestFreshnessMalformed(t *testing.T) {
	p := Policy{TTL: time.Minute, Stale: time.Minute}
	cases := map[string]string{
		"empty":            "",
		"not json":         "{nope",
		"array":            `[1,2]`,
		"null":             `null`,
		"missing cachedAt": `{"payload":{"a":1}}`,
		"string cachedAt":  `{"cached_at":"yesterday","payload":1}`,
		"missing payload":  fmt.Sprintf(`{"cached_at":%d}`, now.UnixMilli()),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, payload := ComputeFreshness(raw, p, now)
			assert.Equal(t, Absent, got)
			assert.Nil(t, payload)
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	raw, err := Encode(map[string]int{"n": 1}, now)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.JSONEq(t, fmt.Sprintf("%d", now.UnixMilli()), string(decoded["cached_at"]))
	assert.JSONEq(t, `{"n":1}`, string(decoded["payload"]))
}

func TestClockSkewCountsAsFresh(t *testing.T) {
	raw, err := Encode(1, now.Add(5*time.Second))
	require.NoError(t, err)
	got, _ := ComputeFreshness(raw, Policy{TTL: time.Second}, now)
	assert.Equal(t, Fresh, got)
}

func TestPolicyExpiry(t *testing.T) {
	assert.Equal(t, 180*time.Second, Policy{TTL: 60 * time.Second, Stale: 120 * time.Second}.Expiry())
	assert.Equal(t, time.Second, Policy{}.Expiry())
}
