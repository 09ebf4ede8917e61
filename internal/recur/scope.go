package recur

import (
	"fmt"
	"time"

	"github.com/taskloop/taskloop/internal/model"
)

type Scope string

const (
	ScopeThis   Scope = "this"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeThis, ScopeFuture, ScopeAll:
		return true
	default:
		return false
	}
}

// Partition splits a collection for a scoped series operation. Affected and
// Remaining are disjoint and together contain every input task exactly once.
type Partition struct {
	Affected  []model.Task
	Remaining []model.Task
}

// FilterByScope partitions tasks for a scoped operation on a series. An
// unknown series or reference task yields an empty affected set rather than
// an error, since the caller may race with a concurrent delete. An unknown
// scope is a programmer error and is rejected.
func FilterByScope(tasks []model.Task, seriesID string, scope Scope, refTaskID string) (Partition, error) {
	if !scope.IsValid() {
		return Partition{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	p := Partition{
		Affected:  make([]model.Task, 0),
		Remaining: make([]model.Task, 0, len(tasks)),
	}

	var refDate time.Time
	var haveRef bool
	if scope == ScopeFuture {
		for _, t := range tasks {
			if t.ID == refTaskID && t.SeriesID == seriesID {
				refDate, haveRef = t.OccurrenceDate()
				break
			}
		}
	}

	for _, t := range tasks {
		if affectedByScope(t, seriesID, scope, refTaskID, refDate, haveRef) {
			p.Affected = append(p.Affected, t)
		} else {
			p.Remaining = append(p.Remaining, t)
		}
	}
	return p, nil
}

// AffectedCount is the read-only preview of a scoped operation. It must
// agree exactly with FilterByScope, so it shares the same predicate.
func AffectedCount(tasks []model.Task, seriesID string, scope Scope, refTaskID string) (int, error) {
	p, err := FilterByScope(tasks, seriesID, scope, refTaskID)
	if err != nil {
		return 0, err
	}
	return len(p.Affected), nil
}

func affectedByScope(t model.Task, seriesID string, scope Scope, refTaskID string, refDate time.Time, haveRef bool) bool {
	if t.SeriesID != seriesID || seriesID == "" {
		return false
	}
	switch scope {
	case ScopeThis:
		return t.ID == refTaskID
	case ScopeAll:
		return true
	case ScopeFuture:
		if !haveRef {
			return false
		}
		d, ok := t.OccurrenceDate()
		if !ok {
			return false
		}
		return !d.Before(refDate)
	default:
		return false
	}
}

type UpdateResult struct {
	Tasks    []model.Task
	Series   model.RecurringSeries
	Affected int
}

// UpdateSeries applies the patch to the affected partition and, for future
// and all scopes, propagates the template-level subset to the series record
// so later generation reflects the change.
func UpdateSeries(tasks []model.Task, series model.RecurringSeries, patch model.TaskPatch, scope Scope, refTaskID string, now time.Time) (UpdateResult, error) {
	if err := patch.Validate(); err != nil {
		return UpdateResult{}, err
	}
	p, err := FilterByScope(tasks, series.ID, scope, refTaskID)
	if err != nil {
		return UpdateResult{}, err
	}

	affected := make(map[string]bool, len(p.Affected))
	for _, t := range p.Affected {
		affected[t.ID] = true
	}

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if affected[t.ID] {
			out = append(out, patch.Apply(t, now))
		} else {
			out = append(out, t)
		}
	}

	updated := series
	if scope == ScopeFuture || scope == ScopeAll {
		if sp := patch.SeriesFields(); !sp.IsZero() {
			updated = sp.Apply(series, now)
		}
	}
	return UpdateResult{Tasks: out, Series: updated, Affected: len(p.Affected)}, nil
}

// DeletePlan describes the outcome of a scoped delete. Series is nil when
// the series record itself is removed (scope all); with scope future it
// survives deactivated so past instances keep a valid reference. For the
// surviving scopes the removed occurrence dates are tombstoned so later
// generation cannot recreate them.
type DeletePlan struct {
	Remaining []model.Task
	Removed   []model.Task
	Series    *model.RecurringSeries
}

func DeleteSeries(tasks []model.Task, series model.RecurringSeries, scope Scope, refTaskID string, now time.Time) (DeletePlan, error) {
	p, err := FilterByScope(tasks, series.ID, scope, refTaskID)
	if err != nil {
		return DeletePlan{}, err
	}

	plan := DeletePlan{Remaining: p.Remaining, Removed: p.Affected}
	switch scope {
	case ScopeAll:
		plan.Series = nil
	case ScopeFuture:
		s := series
		s.Active = false
		s.Tombstones = appendTombstones(s, p.Affected)
		s.UpdatedAt = model.StampAfter(series.UpdatedAt, now)
		plan.Series = &s
	case ScopeThis:
		s := series
		s.Tombstones = appendTombstones(s, p.Affected)
		if len(p.Affected) > 0 {
			s.UpdatedAt = model.StampAfter(series.UpdatedAt, now)
		}
		plan.Series = &s
	}
	return plan, nil
}

// appendTombstones copies the series tombstone list and adds the occurrence
// date of every removed instance, deduplicated by day.
func appendTombstones(series model.RecurringSeries, removed []model.Task) []time.Time {
	out := make([]time.Time, len(series.Tombstones), len(series.Tombstones)+len(removed))
	copy(out, series.Tombstones)
	for _, t := range removed {
		d, ok := t.OccurrenceDate()
		if !ok {
			continue
		}
		day := dayOf(d)
		keep := true
		for _, existing := range out {
			if existing.Equal(day) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, day)
		}
	}
	return out
}
