package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type auditDoc struct {
	Actor     string    `firestore:"actor"`
	Action    string    `firestore:"action"`
	Entity    string    `firestore:"entity"`
	EntityID  string    `firestore:"entityId"`
	Details   string    `firestore:"details,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var auditPaths = map[string]string{
	"actor":     "actor",
	"action":    "action",
	"entity":    "entity",
	"entity_id": "entityId",
}

type AuditStore struct {
	*Collection[domain.AuditEntry]
}

func NewAuditStore(client *firestore.Client) *AuditStore {
	return &AuditStore{
		Collection: NewCollection(client, "auditLogs", auditPaths, decodeAudit,
			func(e domain.AuditEntry) string { return e.ID }),
	}
}

func (s *AuditStore) RecordAudit(ctx context.Context, e domain.AuditEntry) error {
	doc := auditDoc{
		Actor:     e.Actor,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Details:   e.Details,
		CreatedAt: e.CreatedAt.UTC(),
	}
	if _, err := s.col().Doc(e.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to record audit entry %s: %w", e.ID, err)
	}
	return nil
}

func decodeAudit(snap *firestore.DocumentSnapshot) (domain.AuditEntry, error) {
	var doc auditDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.AuditEntry{}, err
	}
	return domain.AuditEntry{
		ID:        snap.Ref.ID,
		Actor:     doc.Actor,
		Action:    doc.Action,
		Entity:    doc.Entity,
		EntityID:  doc.EntityID,
		Details:   doc.Details,
		CreatedAt: doc.CreatedAt,
	}, nil
}
