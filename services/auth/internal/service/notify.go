package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/restaurant/pkg/directory"
	"github.com/Skotchmaster/restaurant/pkg/events"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
)

// Notifier fans user changes out to Kafka and the directory. Both sinks are
// optional and their failures never fail the request.
type Notifier struct {
	Events    events.Publisher
	Topic     string
	Directory Directory
}

func (n Notifier) publish(ctx context.Context, kind string, u *models.User, actorID, prevRole string) {
	if n.Events == nil || u == nil {
		return
	}
	ev := events.UserEvent{
		Type:       kind,
		UserID:     u.ID,
		Email:      u.Email,
		Role:       string(u.Role),
		PrevRole:   prevRole,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	if err := n.Events.PublishEvent(ctx, n.Topic, u.ID, ev); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "event", kind, "user_id", u.ID, "error", err)
	}
}

func (n Notifier) index(ctx context.Context, u *models.User) {
	if n.Directory == nil || u == nil {
		return
	}
	doc := directory.UserDoc{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: string(u.Role)}
	if err := n.Directory.IndexUser(ctx, doc); err != nil {
		logging.FromContext(ctx).Error("directory_index_failed", "user_id", u.ID, "error", err)
	}
}

func (n Notifier) unindex(ctx context.Context, id string) {
	if n.Directory == nil {
		return
	}
	if err := n.Directory.RemoveUser(ctx, id); err != nil {
		logging.FromContext(ctx).Error("directory_remove_failed", "user_id", id, "error", err)
	}
}
