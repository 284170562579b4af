package models

import (
	"time"
)

// ReportKind is what a report targets.
type ReportKind string

const (
	ReportKindThread ReportKind = "thread"
	ReportKindUser   ReportKind = "user"
)

func (k ReportKind) Valid() bool {
	return k == ReportKindThread || k == ReportKindUser
}

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusOpen, ReportStatusResolved, ReportStatusDismissed:
		return true
	}
	return false
}

// Report is an abuse flag raised against a thread or a user.
type Report struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Kind          ReportKind   `gorm:"size:16;not null;index:idx_report_target,priority:1" json:"kind"`
	TargetID      uint         `gorm:"not null;index:idx_report_target,priority:2" json:"target_id"`
	TargetOwnerID uint         `gorm:"not null" json:"target_owner_id"`
	ReporterID    uint         `gorm:"not null;index" json:"reporter_id"`
	Reason        string       `gorm:"type:text;not null" json:"reason"`
	Status        ReportStatus `gorm:"size:16;not null;default:open;index:idx_report_status,priority:1" json:"status"`
	CreatedAt     time.Time    `gorm:"index:idx_report_status,priority:2" json:"created_at"`
	ResolvedBy    *uint        `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time   `json:"resolved_at,omitempty"`
}
