// Package conflict estimates merge-conflict likelihood for pull requests
// without real diffing. The heuristic counts boolean risk factors; actual
// tree comparison is the job of whatever FilePicker a production deployment
// plugs in.
package conflict

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"pr-autopilot/pkg/models"
)

// Thresholds for the risk factors.
const (
	filesChangedThreshold = 10
	linesAddedThreshold   = 500
	staleDaysThreshold    = 7
	minRiskScore          = 2
)

// Severity classifies how disruptive a conflicting file is expected to be.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DetailType classifies the nature of a conflict.
type DetailType string

const (
	TypeMerge      DetailType = "merge"
	TypeContent    DetailType = "content"
	TypeStructural DetailType = "structural"
)

// Detail describes one conflicting file.
type Detail struct {
	File        string     `json:"file"`
	Type        DetailType `json:"type"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
}

// Verdict is the cached result of one evaluation. It is superseded, never
// merged, on re-evaluation.
type Verdict struct {
	HasConflicts  bool      `json:"has_conflicts"`
	ConflictFiles []string  `json:"conflict_files,omitempty"`
	Details       []Detail  `json:"details,omitempty"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// Summary aggregates current verdicts across a PR collection.
type Summary struct {
	TotalConflicted    int `json:"total_conflicted"`
	TotalConflictFiles int `json:"total_conflict_files"`
	UrgentConflicted   int `json:"urgent_conflicted"`
	OldestConflictDays int `json:"oldest_conflict_days"`
}

// FilePicker selects candidate conflicting files for a PR judged risky.
// The default simulates a selection; a production deployment swaps in a
// picker backed by the version-control system's own mergeability check.
type FilePicker func(pr *models.PullRequest) []string

// defaultCandidates are files that commonly collide between branches.
var defaultCandidates = []string{
	"package.json",
	"src/app.go",
	"src/index.css",
	"README.md",
	"internal/shared/header.go",
	"internal/constants.go",
}

// Detector evaluates PRs and remembers the previous verdict per PR so
// rising edges can be told apart from re-confirmations. Safe for use from
// the scheduler and the admin surface concurrently.
type Detector struct {
	mu    sync.Mutex
	cache map[string]Verdict

	pick FilePicker
	rng  *rand.Rand
	now  func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithFilePicker replaces the simulated file selection.
func WithFilePicker(p FilePicker) Option {
	return func(d *Detector) { d.pick = p }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithSeed makes the simulated file selection deterministic.
func WithSeed(seed int64) Option {
	return func(d *Detector) { d.rng = rand.New(rand.NewSource(seed)) }
}

// NewDetector creates a detector with an empty verdict cache.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		cache: make(map[string]Verdict),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pick == nil {
		d.pick = d.simulatedPick
	}
	return d
}

// Evaluate computes a fresh verdict for the PR and updates the cache.
// The second return value is true only on the rising edge: the PR was not
// conflicted (or unknown) before and is now. Falling edges and repeated
// conflicted verdicts return false, so callers never re-notify.
func (d *Detector) Evaluate(pr *models.PullRequest) (Verdict, bool) {
	v := d.assess(pr)

	d.mu.Lock()
	prev, known := d.cache[pr.ID]
	d.cache[pr.ID] = v
	d.mu.Unlock()

	newConflict := v.HasConflicts && (!known || !prev.HasConflicts)
	return v, newConflict
}

// Seed primes the cache with a previously persisted verdict without
// treating it as a fresh evaluation. Used at startup so restarts do not
// re-notify conflicts that were already known.
func (d *Detector) Seed(prID string, v Verdict) {
	d.mu.Lock()
	d.cache[prID] = v
	d.mu.Unlock()
}

// Forget drops the cached verdict for a PR, typically after merge.
func (d *Detector) Forget(prID string) {
	d.mu.Lock()
	delete(d.cache, prID)
	d.mu.Unlock()
}

// Last returns the cached verdict for a PR, if any.
func (d *Detector) Last(prID string) (Verdict, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.cache[prID]
	return v, ok
}

func (d *Detector) assess(pr *models.PullRequest) Verdict {
	now := d.now()
	riskFactors := []bool{
		pr.FilesChanged > filesChangedThreshold,
		pr.LinesAdded > linesAddedThreshold,
		strings.Contains(pr.Branch, "hotfix"),
		pr.TargetBranch == "main" || pr.TargetBranch == "master",
		pr.DaysWaiting(now) > staleDaysThreshold,
	}

	score := 0
	for _, f := range riskFactors {
		if f {
			score++
		}
	}

	v := Verdict{EvaluatedAt: now}
	if score < minRiskScore && !pr.HasConflicts {
		return v
	}

	v.HasConflicts = true
	v.ConflictFiles = d.pick(pr)
	v.Details = d.classify(v.ConflictFiles)
	return v
}

func (d *Detector) classify(files []string) []Detail {
	details := make([]Detail, 0, len(files))
	for _, file := range files {
		detail := Detail{
			File:        file,
			Type:        TypeContent,
			Severity:    SeverityMedium,
			Description: "Conflicting changes in " + file,
		}
		if d.rng.Float64() > 0.5 {
			detail.Type = TypeMerge
		}
		if d.rng.Float64() > 0.7 {
			detail.Severity = SeverityHigh
		}
		details = append(details, detail)
	}
	return details
}

// simulatedPick returns one to three candidate files. Bounded and cheap;
// stands in for a real mergeability probe.
func (d *Detector) simulatedPick(pr *models.PullRequest) []string {
	if len(pr.ConflictFiles) > 0 {
		// The source already told us which files collide.
		return pr.ConflictFiles
	}
	n := d.rng.Intn(3) + 1
	if n > len(defaultCandidates) {
		n = len(defaultCandidates)
	}
	return append([]string(nil), defaultCandidates[:n]...)
}

// Summarize aggregates the current conflict state of the given PRs. Pure
// with respect to the cache; verdicts are read, never written.
func (d *Detector) Summarize(prs []models.PullRequest) Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var s Summary
	for i := range prs {
		pr := &prs[i]
		v, ok := d.cache[pr.ID]
		conflicted := pr.HasConflicts
		files := len(pr.ConflictFiles)
		if ok {
			conflicted = v.HasConflicts
			files = len(v.ConflictFiles)
		}
		if !conflicted {
			continue
		}
		s.TotalConflicted++
		s.TotalConflictFiles += files
		if pr.Priority == models.PriorityUrgent {
			s.UrgentConflicted++
		}
		if days := pr.DaysWaiting(now); days > s.OldestConflictDays {
			s.OldestConflictDays = days
		}
	}
	return s
}
