package models

// AutomationSettings is the policy read by the evaluator on every tick.
// It is created with defaults and mutated only through an explicit
// configuration update.
type AutomationSettings struct {
	WaitDays         int      `json:"wait_days" yaml:"wait_days"`
	ReminderInterval int      `json:"reminder_interval" yaml:"reminder_interval"` // hours
	AutoAssign       bool     `json:"auto_assign" yaml:"auto_assign"`
	AutoReview       bool     `json:"auto_review" yaml:"auto_review"`
	AutoMerge        bool     `json:"auto_merge" yaml:"auto_merge"`
	ExcludedAuthors  []string `json:"excluded_authors" yaml:"excluded_authors"`
	ReviewerPool     []string `json:"reviewer_pool" yaml:"reviewer_pool"`
}

// DefaultAutomationSettings returns the out-of-the-box policy.
func DefaultAutomationSettings() AutomationSettings {
	return AutomationSettings{
		WaitDays:         2,
		ReminderInterval: 24,
		AutoAssign:       true,
		AutoReview:       true,
		AutoMerge:        true,
	}
}

// AuthorExcluded reports whether the given author ID is excluded from
// automation.
func (s AutomationSettings) AuthorExcluded(authorID string) bool {
	for _, id := range s.ExcludedAuthors {
		if id == authorID {
			return true
		}
	}
	return false
}
