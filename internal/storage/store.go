// Package storage persists PR snapshots and conflict verdicts in SQLite so
// rising-edge suppression and automation state survive restarts.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pr-autopilot/internal/automation"
	"pr-autopilot/internal/conflict"
	"pr-autopilot/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the GORM handle.
type Store struct {
	db *gorm.DB
}

// gormLogger routes GORM's log output through slog.
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		slog.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		slog.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		slog.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("gorm query error", "error", err, "duration", elapsed, "sql", sql, "rows", rows)
	} else if elapsed > 200*time.Millisecond {
		slog.Warn("slow query", "duration", elapsed, "sql", sql, "rows", rows)
	}
}

// Open creates or opens the SQLite database at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating storage directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: &gormLogger{level: logger.Warn},
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.AutoMigrate(&PullRequestModel{}, &VerdictModel{}); err != nil {
		return nil, fmt.Errorf("error migrating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertPR writes pr as the snapshot of record. The urgent-notified flag
// is carried over from the existing row; only SetUrgentNotified changes it.
func (s *Store) UpsertPR(pr *models.PullRequest) error {
	row, err := toRow(pr)
	if err != nil {
		return err
	}
	var existing PullRequestModel
	if err := s.db.Select("urgent_notified").First(&existing, "id = ?", pr.ID).Error; err == nil {
		row.UrgentNotified = existing.UrgentNotified
	}
	return s.db.Save(row).Error
}

// GetPR returns the stored snapshot for id.
func (s *Store) GetPR(id string) (*models.PullRequest, error) {
	var row PullRequestModel
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRow(&row)
}

// ListPRs returns every stored snapshot, oldest first.
func (s *Store) ListPRs() ([]models.PullRequest, error) {
	var rows []PullRequestModel
	if err := s.db.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	prs := make([]models.PullRequest, 0, len(rows))
	for i := range rows {
		pr, err := fromRow(&rows[i])
		if err != nil {
			slog.Warn("Skipping malformed PR snapshot", "pr_id", rows[i].ID, "error", err)
			continue
		}
		prs = append(prs, *pr)
	}
	return prs, nil
}

// ReviewerLoad counts currently assigned, unmerged PRs per reviewer.
func (s *Store) ReviewerLoad() (automation.ReviewerLoad, error) {
	type loadRow struct {
		ReviewerID string
		N          int
	}
	var rows []loadRow
	err := s.db.Model(&PullRequestModel{}).
		Select("reviewer_id, count(*) as n").
		Where("reviewer_id <> '' AND status <> ?", string(models.StatusMerged)).
		Group("reviewer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	load := make(automation.ReviewerLoad, len(rows))
	for _, r := range rows {
		load[r.ReviewerID] = r.N
	}
	return load, nil
}

// SetUrgentNotified marks that an urgent-PR notification went out, so it
// is not repeated while the PR stays urgent.
func (s *Store) SetUrgentNotified(prID string, notified bool) error {
	return s.db.Model(&PullRequestModel{}).
		Where("id = ?", prID).
		Update("urgent_notified", notified).Error
}

// UrgentNotified reports whether an urgent-PR notification already went
// out for prID.
func (s *Store) UrgentNotified(prID string) (bool, error) {
	var row PullRequestModel
	if err := s.db.Select("urgent_notified").First(&row, "id = ?", prID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return row.UrgentNotified, nil
}

// SaveVerdict persists the latest conflict verdict for prID.
func (s *Store) SaveVerdict(prID string, v conflict.Verdict) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding verdict: %w", err)
	}
	return s.db.Save(&VerdictModel{
		PRID:         prID,
		HasConflicts: v.HasConflicts,
		Verdict:      string(blob),
		EvaluatedAt:  v.EvaluatedAt,
	}).Error
}

// LastVerdicts returns the persisted verdict per PR, used to seed the
// detector cache at startup.
func (s *Store) LastVerdicts() (map[string]conflict.Verdict, error) {
	var rows []VerdictModel
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]conflict.Verdict, len(rows))
	for _, row := range rows {
		var v conflict.Verdict
		if err := json.Unmarshal([]byte(row.Verdict), &v); err != nil {
			slog.Warn("Skipping malformed verdict row", "pr_id", row.PRID, "error", err)
			continue
		}
		out[row.PRID] = v
	}
	return out, nil
}

// DeleteVerdict drops the verdict row for prID, typically after merge.
func (s *Store) DeleteVerdict(prID string) error {
	return s.db.Delete(&VerdictModel{}, "pr_id = ?", prID).Error
}

func toRow(pr *models.PullRequest) (*PullRequestModel, error) {
	blob, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("error encoding PR snapshot: %w", err)
	}
	row := &PullRequestModel{
		ID:        pr.ID,
		Title:     pr.Title,
		AuthorID:  pr.Author.ID,
		Status:    string(pr.Status),
		Priority:  string(pr.Priority),
		Snapshot:  string(blob),
		CreatedAt: pr.CreatedAt,
	}
	if pr.AssignedReviewer != nil {
		row.ReviewerID = pr.AssignedReviewer.ID
	}
	return row, nil
}

func fromRow(row *PullRequestModel) (*models.PullRequest, error) {
	var pr models.PullRequest
	if err := json.Unmarshal([]byte(row.Snapshot), &pr); err != nil {
		return nil, fmt.Errorf("error decoding PR snapshot: %w", err)
	}
	return &pr, nil
}
