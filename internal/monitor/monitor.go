// Package monitor drives the periodic re-evaluation of every known pull
// request: conflict check, then automation policy, then state transition,
// then notification, in that order per PR.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pr-autopilot/internal/automation"
	"pr-autopilot/internal/conflict"
	"pr-autopilot/internal/lifecycle"
	"pr-autopilot/internal/notify"
	"pr-autopilot/internal/storage"
	"pr-autopilot/pkg/models"
)

// Source lists the pull requests under automation. nil means the stored
// snapshots are the collection of record.
type Source interface {
	ListPullRequests(ctx context.Context) ([]models.PullRequest, error)
}

// Config is the monitor's own timing policy.
type Config struct {
	Enabled       bool
	CheckInterval time.Duration
	AutoNotify    bool
}

// Monitor owns the evaluation loop and the engine's mutable state.
type Monitor struct {
	mu       sync.Mutex
	settings models.AutomationSettings
	cfg      Config

	source     Source
	detector   *conflict.Detector
	evaluator  *automation.Evaluator
	dispatcher *notify.Dispatcher
	store      *storage.Store

	now func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a monitor. now may be nil, defaulting to time.Now.
func New(
	settings models.AutomationSettings,
	cfg Config,
	source Source,
	detector *conflict.Detector,
	evaluator *automation.Evaluator,
	dispatcher *notify.Dispatcher,
	store *storage.Store,
	now func() time.Time,
) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		settings:   settings,
		cfg:        cfg,
		source:     source,
		detector:   detector,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		store:      store,
		now:        now,
	}
}

// SeedFromStore primes the conflict cache with persisted verdicts so a
// restart does not re-notify conflicts that were already known.
func (m *Monitor) SeedFromStore() error {
	verdicts, err := m.store.LastVerdicts()
	if err != nil {
		return err
	}
	for prID, v := range verdicts {
		m.detector.Seed(prID, v)
	}
	slog.Info("Seeded conflict cache from storage", "verdicts", len(verdicts))
	return nil
}

// Settings returns the current automation policy.
func (m *Monitor) Settings() models.AutomationSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Reconfigure swaps the automation policy. It takes effect on the next
// evaluation; a tick in progress finishes under the policy it started
// with.
func (m *Monitor) Reconfigure(settings models.AutomationSettings) {
	m.mu.Lock()
	m.settings = settings
	m.mu.Unlock()
	slog.Info("Automation settings updated",
		"wait_days", settings.WaitDays,
		"reminder_interval", settings.ReminderInterval,
		"auto_assign", settings.AutoAssign,
		"auto_review", settings.AutoReview,
		"auto_merge", settings.AutoMerge)
}

// Start launches the periodic loop. Starting an already-started monitor
// restarts the timer rather than stacking a second one.
func (m *Monitor) Start(ctx context.Context) {
	m.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	interval := m.cfg.CheckInterval
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		slog.Info("Monitor started", "check_interval", interval)
		for {
			select {
			case <-loopCtx.Done():
				slog.Info("Monitor stopped")
				return
			case <-ticker.C:
				if err := m.Tick(loopCtx); err != nil {
					slog.Error("Evaluation tick failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the loop. Stopping a non-started monitor is a no-op.
// In-flight notification sends are not interrupted; only future ticks
// are prevented.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick runs one full evaluation pass. Exported so tests and the admin
// surface can drive the engine without wall-clock timers. Per-PR failures
// skip that PR only; the pass itself fails only when the collection
// cannot be obtained at all.
func (m *Monitor) Tick(ctx context.Context) error {
	prs, err := m.listCollection(ctx)
	if err != nil {
		return fmt.Errorf("error listing pull requests: %w", err)
	}

	settings := m.Settings()
	slog.Info("Evaluation tick", "pull_requests", len(prs))

	for i := range prs {
		pr := &prs[i]
		if err := m.processPR(ctx, pr, settings); err != nil {
			slog.Error("PR evaluation failed, skipping", "pr", pr.Ref(), "error", err)
		}
	}
	return nil
}

// listCollection pulls the current PR collection from the source,
// reconciled against stored engine state, or from storage when no source
// is configured.
func (m *Monitor) listCollection(ctx context.Context) ([]models.PullRequest, error) {
	if m.source == nil {
		return m.store.ListPRs()
	}

	incoming, err := m.source.ListPullRequests(ctx)
	if err != nil {
		return nil, err
	}

	for i := range incoming {
		pr := &incoming[i]
		stored, err := m.store.GetPR(pr.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				slog.Warn("Could not load stored snapshot", "pr", pr.Ref(), "error", err)
			}
			continue
		}
		reconcile(pr, stored)
	}
	return incoming, nil
}

// reconcile overlays engine-authoritative state onto a fresh source
// snapshot. The source wins on attributes it owns (title, metrics,
// mergeability); the engine wins on lifecycle state it advanced itself.
func reconcile(incoming, stored *models.PullRequest) {
	incoming.Status = stored.Status
	incoming.AssignedReviewer = stored.AssignedReviewer
	incoming.Comments = stored.Comments
	incoming.NextAction = stored.NextAction
	incoming.NextActionDate = stored.NextActionDate
	incoming.AutomationEnabled = stored.AutomationEnabled
	if stored.UpdatedAt.After(incoming.UpdatedAt) {
		incoming.UpdatedAt = stored.UpdatedAt
	}
}

// processPR runs the per-PR pipeline: conflict -> policy -> transition ->
// notify. Within one PR this ordering is invariant.
func (m *Monitor) processPR(ctx context.Context, pr *models.PullRequest, settings models.AutomationSettings) error {
	if pr.Status == models.StatusMerged {
		// Terminal; retire cached conflict state.
		m.detector.Forget(pr.ID)
		if err := m.store.DeleteVerdict(pr.ID); err != nil {
			slog.Warn("Could not delete verdict", "pr", pr.Ref(), "error", err)
		}
		return m.store.UpsertPR(pr)
	}

	// 1. Conflicts.
	verdict, newConflict := m.detector.Evaluate(pr)
	pr.HasConflicts = verdict.HasConflicts
	pr.ConflictFiles = verdict.ConflictFiles
	if err := m.store.SaveVerdict(pr.ID, verdict); err != nil {
		slog.Warn("Could not persist verdict", "pr", pr.Ref(), "error", err)
	}
	if newConflict && m.cfg.AutoNotify {
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventConflictDetected, pr, ""))
	}

	// 2. Urgent onset, once per rising edge.
	if err := m.checkUrgent(ctx, pr); err != nil {
		slog.Warn("Urgent check failed", "pr", pr.Ref(), "error", err)
	}

	// 3. Automation policy.
	load, err := m.store.ReviewerLoad()
	if err != nil {
		return fmt.Errorf("error computing reviewer load: %w", err)
	}
	decision := m.evaluator.NextAction(pr, settings, load)
	if decision.Warning != "" {
		slog.Warn("Automation skipped", "pr", pr.Ref(), "warning", decision.Warning)
	}

	// 4. Transition and notify.
	if err := m.applyDecision(ctx, pr, decision); err != nil {
		var invalid *lifecycle.InvalidTransitionError
		if errors.As(err, &invalid) {
			slog.Warn("Invalid transition", "pr", pr.Ref(), "error", invalid)
		} else {
			return err
		}
	}

	return m.store.UpsertPR(pr)
}

func (m *Monitor) checkUrgent(ctx context.Context, pr *models.PullRequest) error {
	notified, err := m.store.UrgentNotified(pr.ID)
	if err != nil {
		return err
	}
	if pr.Priority == models.PriorityUrgent && !notified {
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventUrgentPR, pr, ""))
		// The row must exist before the flag update can land on it.
		if err := m.store.UpsertPR(pr); err != nil {
			return err
		}
		return m.store.SetUrgentNotified(pr.ID, true)
	}
	if pr.Priority != models.PriorityUrgent && notified {
		return m.store.SetUrgentNotified(pr.ID, false)
	}
	return nil
}

func (m *Monitor) applyDecision(ctx context.Context, pr *models.PullRequest, d automation.Decision) error {
	now := m.now()
	switch d.Action {
	case automation.ActionNone:
		return nil

	case automation.ActionAssign:
		next, err := lifecycle.Apply(pr.Status, lifecycle.ReviewerAssigned)
		if err != nil {
			return err
		}
		pr.Status = next
		pr.AssignedReviewer = &models.Developer{ID: d.Reviewer, Name: d.Reviewer}
		pr.NextAction = "Waiting for review"
		pr.NextActionDate = nil
		pr.UpdatedAt = now
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventReviewerAssigned, pr, ""))

	case automation.ActionRemind:
		// No transition; reset the activity clock so the next reminder
		// waits a full interval.
		pr.NextAction = "Remind reviewer"
		due := d.DueAt.Add(time.Duration(m.Settings().ReminderInterval) * time.Hour)
		pr.NextActionDate = &due
		pr.UpdatedAt = now
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventReviewReminder, pr, ""))

	case automation.ActionMerge:
		next, err := lifecycle.Apply(pr.Status, lifecycle.Merged)
		if err != nil {
			return err
		}
		pr.Status = next
		pr.NextAction = ""
		pr.NextActionDate = nil
		pr.UpdatedAt = now
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventAuthorNotified, pr, "merged"))
		m.detector.Forget(pr.ID)
		if err := m.store.DeleteVerdict(pr.ID); err != nil {
			slog.Warn("Could not delete verdict", "pr", pr.Ref(), "error", err)
		}
	}
	return nil
}

// AddComment records a review comment and moves the PR to commented when
// it is under review. Comments on PRs outside the allowed states are kept
// but the invalid transition is reported.
func (m *Monitor) AddComment(ctx context.Context, prID string, author models.Developer, content string) (*models.PullRequest, error) {
	pr, err := m.store.GetPR(prID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	pr.Comments = append(pr.Comments, models.Comment{
		ID:        uuid.NewString(),
		Author:    author,
		Content:   content,
		CreatedAt: now,
	})
	pr.UpdatedAt = now

	next, terr := lifecycle.Apply(pr.Status, lifecycle.CommentAdded)
	if terr == nil {
		pr.Status = next
	}
	if err := m.store.UpsertPR(pr); err != nil {
		return nil, err
	}
	if pr.AssignedReviewer != nil {
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventReviewReminder, pr, ""))
	}
	return pr, terr
}

// ResolveComment marks one top-level comment resolved. When the last
// unresolved comment clears, the PR returns to reviewing and the reviewer
// is told the comments were addressed.
func (m *Monitor) ResolveComment(ctx context.Context, prID, commentID string) (*models.PullRequest, error) {
	pr, err := m.store.GetPR(prID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range pr.Comments {
		if pr.Comments[i].ID == commentID {
			pr.Comments[i].Resolved = true
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("comment %q not found on %s", commentID, pr.Ref())
	}
	pr.UpdatedAt = m.now()

	if lifecycle.CanResolve(pr) {
		next, terr := lifecycle.Apply(pr.Status, lifecycle.AllCommentsResolved)
		if terr != nil {
			return nil, terr
		}
		pr.Status = next
		if err := m.store.UpsertPR(pr); err != nil {
			return nil, err
		}
		m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventCommentsAddressed, pr, ""))
		return pr, nil
	}

	return pr, m.store.UpsertPR(pr)
}

// Approve moves the PR to approved and notifies the author.
func (m *Monitor) Approve(ctx context.Context, prID string) (*models.PullRequest, error) {
	pr, err := m.store.GetPR(prID)
	if err != nil {
		return nil, err
	}
	next, terr := lifecycle.Apply(pr.Status, lifecycle.Approved)
	if terr != nil {
		return nil, terr
	}
	pr.Status = next
	pr.NextAction = "Ready to merge"
	pr.UpdatedAt = m.now()
	if err := m.store.UpsertPR(pr); err != nil {
		return nil, err
	}
	m.dispatcher.Dispatch(ctx, notify.BuildPayload(notify.EventAuthorNotified, pr, "approved"))
	return pr, nil
}

// Summary reports aggregate conflict state over the stored collection.
func (m *Monitor) Summary() (conflict.Summary, error) {
	prs, err := m.store.ListPRs()
	if err != nil {
		return conflict.Summary{}, err
	}
	return m.detector.Summarize(prs), nil
}

// PullRequests returns the stored collection.
func (m *Monitor) PullRequests() ([]models.PullRequest, error) {
	return m.store.ListPRs()
}

// PullRequest returns one stored snapshot.
func (m *Monitor) PullRequest(id string) (*models.PullRequest, error) {
	return m.store.GetPR(id)
}
