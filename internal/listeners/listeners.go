package listeners

import (
	"context"

	"go.uber.org/zap"

	"Alora/internal/models"
)

// SSE 分组命名
func SessionGroup(owner string) string { return "session:" + owner }

func UserGroup(userID string) string { return "user:" + userID }

type Publisher interface {
	Publish(group, event string, v any)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Notifications 站内通知：先落库，成功后推给在线的客户端
type Notifications struct {
	store NotificationStore
	pub   Publisher
	log   *zap.Logger
}

func NewNotifications(store NotificationStore, pub Publisher, log *zap.Logger) *Notifications {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifications{store: store, pub: pub, log: log}
}

func (n *Notifications) Notify(ctx context.Context, note *models.Notification) error {
	if err := n.store.CreateNotification(ctx, note); err != nil {
		return err
	}
	if n.pub != nil {
		n.pub.Publish(UserGroup(note.UserID), "notification", note)
	}
	n.log.Debug("notification created", zap.String("user_id", note.UserID), zap.String("type", note.Type))
	return nil
}

// SessionEvents 会话实时事件转发到 owner 的 SSE 分组
type SessionEvents struct {
	pub Publisher
}

func NewSessionEvents(pub Publisher) SessionEvents { return SessionEvents{pub: pub} }

func (s SessionEvents) Publish(owner, kind string, data any) {
	s.pub.Publish(SessionGroup(owner), kind, data)
}
