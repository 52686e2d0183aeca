package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bienestar/catalog"
	"bienestar/models"
)

// expansionSize is how many new areas a new plan adds.
const expansionSize = 4

// DimensionAverage is the mean score of one dimension's areas.
type DimensionAverage struct {
	Dimension models.Dimension `json:"dimension"`
	Average   float64          `json:"average"`
}

// DimensionAverages returns the mean score per dimension in canonical order.
// Unscored areas count as 0 and an empty dimension averages 0.
func DimensionAverages(areas []models.AssessmentArea) []DimensionAverage {
	out := make([]DimensionAverage, 0, len(models.Dimensions))
	for _, d := range models.Dimensions {
		sum, n := 0, 0
		for _, a := range areas {
			if a.Dimension == d {
				sum += a.Score
				n++
			}
		}
		if n == 0 {
			n = 1
		}
		out = append(out, DimensionAverage{Dimension: d, Average: float64(sum) / float64(n)})
	}
	return out
}

// PriorityDimension is the dimension with the lowest average. The first
// minimum in canonical order wins ties.
func PriorityDimension(areas []models.AssessmentArea) models.Dimension {
	avgs := DimensionAverages(areas)
	best := avgs[0]
	for _, a := range avgs[1:] {
		if a.Average < best.Average {
			best = a
		}
	}
	return best.Dimension
}

// GenerateInitialPlan builds one habit per area of the priority dimension.
func GenerateInitialPlan(areas []models.AssessmentArea, cat *catalog.Catalog, now time.Time) []models.Habit {
	dim := PriorityDimension(areas)

	var habits []models.Habit
	for _, area := range areas {
		if area.Dimension != dim {
			continue
		}
		desc := fmt.Sprintf("Hábito para %s - Score %d", area.Name, area.Score)
		if e, ok := cat.Match(area.Name, area.Score); ok {
			desc = e.Description
		}
		habits = append(habits, models.Habit{
			ID:           area.ID,
			Title:        area.Name,
			Description:  desc,
			Dimension:    area.Dimension,
			SubDimension: area.Name,
			Status:       models.InProgress,
			Week:         1,
			IsDaily:      true,
			DateAdded:    now,
		})
	}
	return habits
}

// BuildDailyTasks maps every non-deleted habit to an unchecked task, ids 1..N.
func BuildDailyTasks(habits []models.Habit) []models.DailyTask {
	tasks := make([]models.DailyTask, 0, len(habits))
	for _, h := range habits {
		if h.Status == models.Deleted {
			continue
		}
		tasks = append(tasks, models.DailyTask{
			ID:        len(tasks) + 1,
			Title:     h.Title,
			Subtitle:  h.Description,
			Dimension: h.Dimension,
		})
	}
	return tasks
}

func passportStatus(s models.HabitStatus) models.PassportStatus {
	switch s {
	case models.Completed:
		return models.PassportCompleted
	case models.Deleted:
		return models.PassportDeleted
	default:
		return models.PassportInProgress
	}
}

// DimensionIcon is the material icon name shown for a dimension.
func DimensionIcon(d models.Dimension) string {
	switch d {
	case models.Mind:
		return "psychology"
	case models.Body:
		return "accessibility_new"
	default:
		return "self_improvement"
	}
}

// BuildPassportEntries records every habit of the plan, deleted ones included.
func BuildPassportEntries(habits []models.Habit, week int, now time.Time, newID func() string) []models.PassportEntry {
	label := models.WeekLabel(week)
	entries := make([]models.PassportEntry, 0, len(habits))
	for _, h := range habits {
		added := h.DateAdded
		if added.IsZero() {
			added = now
		}
		entries = append(entries, models.PassportEntry{
			ID:          fmt.Sprintf("week%d_%s_%s", week, h.ID, newID()),
			Dimension:   h.Dimension,
			SubCategory: h.SubDimension,
			Title:       h.Title,
			Description: h.Description,
			Status:      passportStatus(h.Status),
			Week:        label,
			Icon:        DimensionIcon(h.Dimension),
			DateAdded:   added,
		})
	}
	return entries
}

// MergePassport replaces the rows of one week label with entries.
func MergePassport(existing []models.PassportEntry, week int, entries []models.PassportEntry) []models.PassportEntry {
	label := models.WeekLabel(week)
	out := make([]models.PassportEntry, 0, len(existing)+len(entries))
	for _, e := range existing {
		if e.Week != label {
			out = append(out, e)
		}
	}
	return append(out, entries...)
}

// UpgradeHabits moves each completed habit to its next catalog tier.
func UpgradeHabits(habits []models.Habit, cat *catalog.Catalog, areas []models.AssessmentArea) []models.Habit {
	out := make([]models.Habit, len(habits))
	for i, h := range habits {
		out[i] = h
		if h.Status != models.Completed {
			continue
		}

		current := 1
		if tier, ok := cat.TierOf(h.SubDimension, h.Description); ok {
			current = tier
		} else if a, ok := findArea(areas, h.SubDimension); ok {
			current = a.Score
		}
		if current >= models.MaxScore {
			continue
		}

		if next, ok := cat.Match(h.SubDimension, current+1); ok {
			out[i].Description = next.Description
			out[i].Status = models.InProgress
		}
	}
	return out
}

func findArea(areas []models.AssessmentArea, name string) (models.AssessmentArea, bool) {
	n := strings.ToLower(name)
	for _, a := range areas {
		if strings.ToLower(a.Name) == n {
			return a, true
		}
	}
	return models.AssessmentArea{}, false
}

// ExpandPlan adds habits for the lowest scored areas not yet in the plan.
func ExpandPlan(habits []models.Habit, areas []models.AssessmentArea, cat *catalog.Catalog, week int, now time.Time) []models.Habit {
	inPlan := make(map[string]bool, len(habits))
	for _, h := range habits {
		inPlan[strings.ToLower(h.SubDimension)] = true
	}

	sorted := make([]models.AssessmentArea, len(areas))
	copy(sorted, areas)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	var added []models.Habit
	for _, area := range sorted {
		if len(added) == expansionSize {
			break
		}
		if inPlan[strings.ToLower(area.Name)] {
			continue
		}
		desc := fmt.Sprintf("Meta: %s (Nivel %d)", area.Name, area.Score)
		if e, ok := cat.Match(area.Name, area.Score); ok {
			desc = e.Description
		}
		added = append(added, models.Habit{
			ID:           fmt.Sprintf("new_%d_%s", now.UnixMilli(), area.ID),
			Title:        area.Name,
			Description:  desc,
			Dimension:    area.Dimension,
			SubDimension: area.Name,
			Status:       models.InProgress,
			Week:         week,
			IsDaily:      true,
			DateAdded:    now,
		})
	}
	return added
}

// EvolvePlan is the upgraded current plan followed by the expansion.
func EvolvePlan(habits []models.Habit, areas []models.AssessmentArea, cat *catalog.Catalog, week int, now time.Time) []models.Habit {
	upgraded := UpgradeHabits(habits, cat, areas)
	return append(upgraded, ExpandPlan(habits, areas, cat, week, now)...)
}

func activeHabits(habits []models.Habit) int {
	n := 0
	for _, h := range habits {
		if h.Status != models.Deleted {
			n++
		}
	}
	return n
}
