package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID            uuid.UUID `json:"id"`
	ActorIdentity string    `json:"actor_identity,omitempty"`
	ActorType     string    `json:"actor_type"` // user/system/indexer
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      *uint64   `json:"entity_id,omitempty"`
	Meta          any       `json:"meta,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
