// Package export builds the operator progress workbook: a summary of lesson
// statuses per category plus one sheet of per-user lesson rows for each
// category.
package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadpath/internal/model"
)

// InstanceLister provides the lesson instances to report on.
type InstanceLister interface {
	ListInstances(ctx context.Context) ([]model.UserLessonInstance, error)
}

// SummaryRow aggregates one category's instance statuses.
type SummaryRow struct {
	Category  string
	Locked    int
	Available int
	Completed int
}

// Total is the category's instance count across all statuses.
func (r SummaryRow) Total() int {
	return r.Locked + r.Available + r.Completed
}

// LessonRow is one user-lesson line on a category sheet. Timestamps are
// pre-formatted for display; empty means the event has not happened.
type LessonRow struct {
	UserID      int64
	Week        int
	Day         int
	Status      string
	Points      int
	UnlockedAt  string
	StartedAt   string
	CompletedAt string
}

// CategorySheet holds one category's rows, sorted by user then template
// order.
type CategorySheet struct {
	Name string
	Rows []LessonRow
}

// Progress is the fully shaped report, ready for rendering. Categories are
// sorted by name.
type Progress struct {
	Summary    []SummaryRow
	Categories []CategorySheet
}

// BuildProgress shapes every lesson instance into the report layout.
func BuildProgress(ctx context.Context, store InstanceLister) (*Progress, error) {
	instances, err := store.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	byCategory := make(map[string][]model.UserLessonInstance)
	for _, inst := range instances {
		byCategory[inst.Category] = append(byCategory[inst.Category], inst)
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &Progress{}
	for _, name := range names {
		rows := byCategory[name]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].UserID != rows[j].UserID {
				return rows[i].UserID < rows[j].UserID
			}
			return rows[i].Template().Less(rows[j].Template())
		})

		summary := SummaryRow{Category: name}
		sheet := CategorySheet{Name: name, Rows: make([]LessonRow, 0, len(rows))}
		for _, inst := range rows {
			switch inst.Status {
			case model.StatusLocked:
				summary.Locked++
			case model.StatusAvailable:
				summary.Available++
			case model.StatusCompleted:
				summary.Completed++
			}
			sheet.Rows = append(sheet.Rows, LessonRow{
				UserID:      inst.UserID,
				Week:        inst.WeekNumber,
				Day:         inst.DayNumber,
				Status:      string(inst.Status),
				Points:      inst.PointsEarned,
				UnlockedAt:  formatTime(inst.UnlockedAt),
				StartedAt:   formatTime(inst.StartedAt),
				CompletedAt: formatTime(inst.CompletedAt),
			})
		}
		p.Summary = append(p.Summary, summary)
		p.Categories = append(p.Categories, sheet)
	}
	return p, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
