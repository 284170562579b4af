package models

import (
	"time"
)

// AuditLog is one append-only actor/action record.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorID    *uint          `gorm:"index" json:"actor_id,omitempty"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	Resource   string         `gorm:"size:32" json:"resource"`
	ResourceID string         `gorm:"size:64" json:"resource_id"`
	Details    map[string]any `gorm:"type:text;serializer:json" json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// DebugEntry is a short-lived diagnostic record kept in the debug trail.
type DebugEntry struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
