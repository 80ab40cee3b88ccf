package syncer

import (
	"cmp"
	"slices"
	"strings"

	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/richtext"
)

// Sort keys
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortTarget   = "target"
	SortProgress = "progress"
)

// Status filters
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

const CategoryAll = "all"

// ViewState is the filter, sort and search applied to a snapshot. Zero
// values mean no filtering and newest first.
type ViewState struct {
	Category string
	Status   string
	Sort     string
	Search   string
}

// Apply derives the visible list from campaigns without modifying them.
//
// Active means open with the target not yet reached; completed is the
// complement. Search matches title, plain-text description or category,
// ignoring case.
func Apply(campaigns []models.Campaign, vs ViewState) []models.Campaign {
	category := strings.ToLower(strings.TrimSpace(vs.Category))
	term := strings.ToLower(strings.TrimSpace(vs.Search))

	out := make([]models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if category != "" && category != CategoryAll && strings.ToLower(c.Category) != category {
			continue
		}
		if !matchStatus(&c, vs.Status) {
			continue
		}
		if term != "" && !matchSearch(&c, term) {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, comparator(vs.Sort))
	return out
}

func matchStatus(c *models.Campaign, status string) bool {
	active := c.IsActive() && !c.TargetReached
	switch status {
	case StatusActive:
		return active
	case StatusCompleted:
		return !active
	}
	return true
}

func matchSearch(c *models.Campaign, term string) bool {
	return strings.Contains(strings.ToLower(c.Title), term) ||
		strings.Contains(strings.ToLower(richtext.PlainText(c.Description)), term) ||
		strings.Contains(strings.ToLower(c.Category), term)
}

// comparator orders by the sort key, falling back to id so equal keys keep a
// stable order.
func comparator(key string) func(a, b models.Campaign) int {
	switch key {
	case SortOldest:
		return func(a, b models.Campaign) int {
			return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), cmp.Compare(a.ID, b.ID))
		}
	case SortTarget:
		return func(a, b models.Campaign) int {
			return cmp.Or(cmp.Compare(b.Target, a.Target), cmp.Compare(a.ID, b.ID))
		}
	case SortProgress:
		return func(a, b models.Campaign) int {
			return cmp.Or(cmp.Compare(b.ProgressBps(), a.ProgressBps()), cmp.Compare(a.ID, b.ID))
		}
	}
	return func(a, b models.Campaign) int {
		return cmp.Or(cmp.Compare(b.CreatedAt, a.CreatedAt), cmp.Compare(b.ID, a.ID))
	}
}
