package storage

import "time"

// PullRequestModel is the GORM model for the PR snapshot of record.
// Frequently queried attributes get columns; the full snapshot rides
// along as JSON so nothing is lost between ticks.
type PullRequestModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null;default:''"`
	AuthorID       string `gorm:"not null;index:idx_author"`
	ReviewerID     string `gorm:"index:idx_reviewer;default:''"`
	Status         string `gorm:"not null;index:idx_status;check:status IN ('waiting','assigned','reviewing','commented','approved','merged')"`
	Priority       string `gorm:"not null;default:'medium'"`
	UrgentNotified bool   `gorm:"not null;default:false"`
	Snapshot       string `gorm:"not null;default:''"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (PullRequestModel) TableName() string { return "pull_requests" }

// VerdictModel is the GORM model for the last conflict verdict per PR.
// One row per PR, superseded on every re-evaluation.
type VerdictModel struct {
	PRID         string `gorm:"primaryKey"`
	HasConflicts bool   `gorm:"not null;default:false"`
	Verdict      string `gorm:"not null;default:''"`
	EvaluatedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (VerdictModel) TableName() string { return "conflict_verdicts" }
