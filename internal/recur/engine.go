package recur

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/model"
)

var (
	ErrUnknownScope  = errors.New("recur: unknown scope")
	ErrInvalidSeries = errors.New("recur: invalid series")
)

const (
	// maxInstances bounds the initial generation batch.
	maxInstances = 30
	// horizon bounds how far past the rule start instances are generated.
	horizon = 365 * 24 * time.Hour
)

// Template holds the series-level fields every generated instance inherits.
type Template struct {
	Title           string
	Description     string
	Category        model.Category
	Priority        model.Priority
	ReminderEnabled bool
}

type SeriesResult struct {
	Series    model.RecurringSeries
	Instances []model.Task
}

// CreateSeries validates the template and rule, then builds the series
// record plus its initial instance batch. One instance per occurrence
// date; instance dates are day-granular UTC, due dates keep the rule
// start's clock time.
func CreateSeries(tpl Template, rule model.RecurrenceRule, now time.Time) (SeriesResult, error) {
	series := model.RecurringSeries{
		ID:              uuid.NewString(),
		Title:           tpl.Title,
		Description:     tpl.Description,
		Category:        tpl.Category,
		Priority:        tpl.Priority,
		ReminderEnabled: tpl.ReminderEnabled,
		Rule:            rule,
		Active:          true,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := series.Validate(); err != nil {
		return SeriesResult{}, fmt.Errorf("%w: %v", ErrInvalidSeries, err)
	}

	until := rule.StartDate.UTC().Add(horizon)
	occurrences := rule.Occurrences(maxInstances, until)
	instances := make([]model.Task, 0, len(occurrences))
	seen := make(map[time.Time]bool, len(occurrences))
	for _, occ := range occurrences {
		day := dayOf(occ)
		if seen[day] {
			continue
		}
		seen[day] = true
		instances = append(instances, newInstance(series, occ, now))
	}
	return SeriesResult{Series: series, Instances: instances}, nil
}

// ExtendSeries regenerates the forward horizon for an active series,
// returning only instances whose (series, instanceDate) pair does not
// already exist and whose occurrence date is not tombstoned. Used to top
// up series as time passes; an individually deleted instance stays gone.
func ExtendSeries(series model.RecurringSeries, existing []model.Task, now time.Time) []model.Task {
	if !series.Active {
		return nil
	}
	nowU := now.UTC()
	today := dayOf(nowU)
	have := make(map[time.Time]bool)
	future := 0
	for _, t := range existing {
		if t.SeriesID == series.ID && t.InstanceDate != nil {
			day := dayOf(*t.InstanceDate)
			have[day] = true
			if !day.Before(today) {
				future++
			}
		}
	}

	budget := maxInstances - future
	until := nowU.Add(horizon)
	rule := series.Rule
	out := make([]model.Task, 0)
	for n := 0; budget > 0; n++ {
		if rule.Count > 0 && n >= rule.Count {
			break
		}
		occ := rule.OccurrenceAt(n)
		if occ.After(until) {
			break
		}
		if rule.EndDate != nil && occ.After(rule.EndDate.UTC()) {
			break
		}
		if occ.Before(nowU) {
			continue
		}
		day := dayOf(occ)
		if have[day] || series.Tombstoned(day) {
			continue
		}
		have[day] = true
		out = append(out, newInstance(series, occ, now))
		budget--
	}
	return out
}

func newInstance(series model.RecurringSeries, occurrence, now time.Time) model.Task {
	due := occurrence.UTC()
	day := dayOf(occurrence)
	return model.Task{
		ID:              uuid.NewString(),
		Title:           series.Title,
		Description:     series.Description,
		Category:        series.Category,
		Priority:        series.Priority,
		DueDate:         &due,
		ReminderEnabled: series.ReminderEnabled,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
		IsRecurring:     true,
		SeriesID:        series.ID,
		InstanceDate:    &day,
	}
}

// Skip marks an instance excluded from pending work without deleting it.
// Everything except the flag and the modification stamp is preserved.
func Skip(task model.Task, now time.Time) model.Task {
	out := task.Clone()
	out.Skipped = true
	out.UpdatedAt = model.StampAfter(task.UpdatedAt, now)
	return out
}

func Unskip(task model.Task, now time.Time) model.Task {
	out := task.Clone()
	out.Skipped = false
	out.UpdatedAt = model.StampAfter(task.UpdatedAt, now)
	return out
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
