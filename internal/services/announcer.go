package services

import (
	"context"
	"time"

	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

// AuditAnnouncer publishes a just-committed audit entry to downstream
// consumers. audit.Trail satisfies it; a nil announcer disables publishing.
// The DB row is always the durable record, so announcements are fire-and-forget.
type AuditAnnouncer interface {
	Announce(ctx context.Context, c *types.Contract, row *types.AuditEntry)
}

// announce publishes one post-commit audit event, nil-safe on the announcer.
func announce(a AuditAnnouncer, ctx context.Context, c *types.Contract, actor domainagg.ActorMeta, action string) {
	if a == nil || c == nil {
		return
	}
	a.Announce(ctx, c, &types.AuditEntry{
		ContractID: c.ID,
		ActorID:    actor.ActorID,
		Action:     action,
		RequestID:  actor.RequestID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		CreatedAt:  time.Now().UTC(),
	})
}
