package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

const observerPrefix = "alora-observer-"

// TokenIssuer 本地签发观察者令牌：隐身入房，只订阅不发布
type TokenIssuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}
}

func (t *TokenIssuer) IssueMediaToken(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("livekit token: empty session id")
	}
	grant := &auth.VideoGrant{RoomJoin: true, Room: sessionID, Hidden: true}
	grant.SetCanPublish(false)
	grant.SetCanPublishData(false)
	grant.SetCanSubscribe(true)

	at := auth.NewAccessToken(t.apiKey, t.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(observerPrefix + sessionID).
		SetValidFor(t.ttl)
	tok, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("livekit token: %w", err)
	}
	return tok, nil
}
