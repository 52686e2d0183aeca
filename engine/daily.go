package engine

import (
	"math"
	"time"

	"bienestar/models"
	"bienestar/store"
)

// DayIndex maps a date to its position in models.Days, Monday being 0.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func dayPosition(day string) (int, bool) {
	for i, d := range models.Days {
		if d == day {
			return i, true
		}
	}
	return 0, false
}

func (s *Service) taskSkeleton() []models.DailyTask {
	tasks := s.DailyTasks()
	if len(tasks) == 0 {
		tasks = BuildDailyTasks(s.Habits())
	}
	out := make([]models.DailyTask, len(tasks))
	for i, t := range tasks {
		t.ID = i + 1
		t.Completed = false
		out[i] = t
	}
	return out
}

// Week returns the seven days of the current week, rebuilding any day the
// cache does not hold.
func (s *Service) Week() models.WeekData {
	cached := store.LoadOr(s.sess, WeekCacheKey(s.CurrentWeek()), models.WeekData{})
	week := make(models.WeekData, len(models.Days))
	var skeleton []models.DailyTask
	for _, day := range models.Days {
		if plan, ok := cached[day]; ok {
			week[day] = plan
			continue
		}
		if skeleton == nil {
			skeleton = s.taskSkeleton()
		}
		tasks := make([]models.DailyTask, len(skeleton))
		copy(tasks, skeleton)
		week[day] = models.DayPlan{Tasks: tasks}
	}
	return week
}

func (s *Service) editWeek(op string, edit func(models.WeekData) error) (models.WeekData, error) {
	var week models.WeekData
	err := s.atomic(func() error {
		if st := s.State(); st != PlanRunning {
			return &TransitionError{Op: op, State: st}
		}
		week = s.Week()
		if err := edit(week); err != nil {
			return err
		}
		s.sess.Set(WeekCacheKey(s.CurrentWeek()), week)
		return nil
	})
	return week, err
}

// ToggleTask flips one task of a day. Days after today are read-only.
func (s *Service) ToggleTask(day string, taskID int) (models.WeekData, error) {
	pos, ok := dayPosition(day)
	if !ok {
		return nil, ErrUnknownDay
	}
	if pos > DayIndex(s.now()) {
		return nil, ErrFutureDay
	}
	return s.editWeek("toggleTask", func(week models.WeekData) error {
		plan := week[day]
		for i := range plan.Tasks {
			if plan.Tasks[i].ID == taskID {
				plan.Tasks[i].Completed = !plan.Tasks[i].Completed
				week[day] = plan
				return nil
			}
		}
		return ErrTaskNotFound
	})
}

// SetReflection stores the free-text reflection of a day.
func (s *Service) SetReflection(day, text string) (models.WeekData, error) {
	if _, ok := dayPosition(day); !ok {
		return nil, ErrUnknownDay
	}
	return s.editWeek("setReflection", func(week models.WeekData) error {
		plan := week[day]
		plan.Reflections = text
		week[day] = plan
		return nil
	})
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

func countDone(tasks []models.DailyTask) int {
	n := 0
	for _, t := range tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// DayCompletion is the rounded share of a day's tasks that are done.
func DayCompletion(week models.WeekData, day string) int {
	tasks := week[day].Tasks
	return percent(countDone(tasks), len(tasks))
}

// WeeklyProgress is the rounded share of all tasks of the week that are done.
func WeeklyProgress(week models.WeekData) int {
	done, total := 0, 0
	for _, day := range models.Days {
		done += countDone(week[day].Tasks)
		total += len(week[day].Tasks)
	}
	return percent(done, total)
}

type DayReport struct {
	Day         string `json:"day"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	Completion  int    `json:"completion"`
	Reflections string `json:"reflections,omitempty"`
}

type DimensionTally struct {
	Dimension models.Dimension `json:"dimension"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
}

// WeeklyReport is the data behind the end-of-week summary.
type WeeklyReport struct {
	Week        int              `json:"week"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Progress    int              `json:"progress"`
	Days        []DayReport      `json:"days"`
	Dimensions  []DimensionTally `json:"dimensions"`
}

func (s *Service) WeeklyReport() WeeklyReport {
	week := s.Week()
	report := WeeklyReport{
		Week:        s.CurrentWeek(),
		GeneratedAt: s.now(),
		Progress:    WeeklyProgress(week),
	}

	tallies := make(map[models.Dimension]*DimensionTally, len(models.Dimensions))
	for _, d := range models.Dimensions {
		tallies[d] = &DimensionTally{Dimension: d}
	}

	for _, day := range models.Days {
		plan := week[day]
		done := countDone(plan.Tasks)
		report.Days = append(report.Days, DayReport{
			Day:         day,
			Completed:   done,
			Total:       len(plan.Tasks),
			Completion:  percent(done, len(plan.Tasks)),
			Reflections: plan.Reflections,
		})
		for _, t := range plan.Tasks {
			tl, ok := tallies[t.Dimension]
			if !ok {
				continue
			}
			tl.Total++
			if t.Completed {
				tl.Completed++
			}
		}
	}
	for _, d := range models.Dimensions {
		report.Dimensions = append(report.Dimensions, *tallies[d])
	}
	return report
}
