package engine

import (
	"time"

	"github.com/google/uuid"

	"bienestar/catalog"
	"bienestar/logger"
	"bienestar/models"
	"bienestar/store"
)

// Service runs the plan cycle for one unlocked session.
type Service struct {
	sess     *store.Session
	fallback *catalog.Catalog
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for dates and deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the ID suffix generator for passport entries.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService binds the engine to the records that secret opens in st.
func NewService(st *store.Store, secret []byte, cat *catalog.Catalog, log *logger.Logger, opts ...Option) *Service {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		sess:     st.Unlock(secret),
		fallback: cat,
		log:      log.With("component", "engine"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Session() *store.Session { return s.sess }

func (s *Service) atomic(fn func() error) error {
	return s.sess.Store().Atomic(fn)
}

func (s *Service) State() CycleState { return loadState(s.sess) }

func (s *Service) Gates() Gates { return s.State().Gates() }

// Streak is the raw cycle counter, 0 after a strategy change.
func (s *Service) Streak() int { return store.LoadOr(s.sess, KeyStreak, 0) }

// CurrentWeek is the week number used for passport labels and caches.
func (s *Service) CurrentWeek() int {
	if n := s.Streak(); n > 0 {
		return n
	}
	return 1
}

// WeekCount is the lifetime week counter.
func (s *Service) WeekCount() int { return store.LoadOr(s.sess, KeyWeek, 1) }

// Catalog returns the uploaded catalog, or the bundled one when none is stored.
func (s *Service) Catalog() *catalog.Catalog {
	entries, ok := store.LoadAs[[]models.MasterHabitEntry](s.sess, KeyMasterData)
	if !ok || len(entries) == 0 {
		return s.fallback
	}
	c, err := catalog.New(entries)
	if err != nil {
		s.log.Warn("stored catalog is invalid, using bundled catalog", "error", err)
		return s.fallback
	}
	return c
}

// SetCatalog validates and stores a custom catalog.
func (s *Service) SetCatalog(entries []models.MasterHabitEntry) (*catalog.Catalog, error) {
	c, err := catalog.New(entries)
	if err != nil {
		return nil, err
	}
	s.sess.Set(KeyMasterData, c.Entries())
	s.log.Info("custom catalog stored", "entries", c.Len())
	return c, nil
}

// ResetCatalog drops the custom catalog.
func (s *Service) ResetCatalog() {
	s.sess.Remove(KeyMasterData)
}

func (s *Service) Habits() []models.Habit {
	return store.LoadOr(s.sess, KeyWeeklyHabits, []models.Habit{})
}

func (s *Service) DailyTasks() []models.DailyTask {
	return store.LoadOr(s.sess, KeyDailyTasks, []models.DailyTask{})
}

func (s *Service) Passport() []models.PassportEntry {
	return store.LoadOr(s.sess, KeyPassport, []models.PassportEntry{})
}

// WeeklyPlan returns the current habits, generating the initial plan when a
// submitted assessment has none yet.
func (s *Service) WeeklyPlan() ([]models.Habit, error) {
	var habits []models.Habit
	err := s.atomic(func() error {
		habits = s.Habits()
		if len(habits) > 0 || s.State() == AwaitingAssessment {
			return nil
		}
		generated, err := s.generateInitialPlan()
		habits = generated
		return err
	})
	return habits, err
}

func (s *Service) generateInitialPlan() ([]models.Habit, error) {
	areas := s.Evaluation()
	if len(areas) == 0 {
		return nil, ErrNoAreas
	}
	habits := GenerateInitialPlan(areas, s.Catalog(), s.now())
	s.sess.Set(KeyWeeklyHabits, habits)
	s.log.Info("initial plan generated", "dimension", PriorityDimension(areas), "habits", len(habits))
	return habits, nil
}

// SetHabitStatus overwrites the status of one habit.
func (s *Service) SetHabitStatus(id string, status models.HabitStatus) (models.Habit, error) {
	if !status.Valid() {
		return models.Habit{}, ErrInvalidStatus
	}
	var updated models.Habit
	err := s.atomic(func() error {
		if st := s.State(); st == AwaitingAssessment {
			return &TransitionError{Op: "setHabitStatus", State: st}
		}
		habits := s.Habits()
		for i := range habits {
			if habits[i].ID == id {
				habits[i].Status = status
				updated = habits[i]
				s.sess.Set(KeyWeeklyHabits, habits)
				return nil
			}
		}
		return ErrHabitNotFound
	})
	return updated, err
}

// GenerateDailyPlan commits the weekly plan: daily tasks, a clean week cache
// and this week's passport rows.
func (s *Service) GenerateDailyPlan() ([]models.DailyTask, error) {
	var tasks []models.DailyTask
	err := s.atomic(func() error {
		st := s.State()
		if st != PlanReady && st != PlanRunning {
			return &TransitionError{Op: "generateDailyPlan", State: st}
		}
		habits := s.Habits()
		if activeHabits(habits) == 0 {
			return ErrEmptyPlan
		}

		week := s.CurrentWeek()
		tasks = BuildDailyTasks(habits)
		s.sess.Set(KeyDailyTasks, tasks)
		s.sess.Remove(WeekCacheKey(week))

		entries := BuildPassportEntries(habits, week, s.now(), s.newID)
		s.sess.Set(KeyPassport, MergePassport(s.Passport(), week, entries))

		saveState(s.sess, PlanRunning)
		s.log.Info("daily plan generated", "week", week, "tasks", len(tasks))
		return nil
	})
	return tasks, err
}

// AdvanceWeek closes the running week.
func (s *Service) AdvanceWeek() error {
	return s.atomic(func() error {
		st := s.State()
		if st != PlanRunning {
			return &TransitionError{Op: "advanceWeek", State: st}
		}
		week := s.CurrentWeek()
		s.sess.Remove(WeekCacheKey(week))
		s.sess.Set(KeyStreak, week+1)
		s.sess.Set(KeyWeek, s.WeekCount()+1)
		saveState(s.sess, AwaitingDecision)
		s.log.Info("week advanced", "closed", week)
		return nil
	})
}

// NewPlan upgrades completed habits and adds the weakest uncovered areas.
func (s *Service) NewPlan() ([]models.Habit, error) {
	var habits []models.Habit
	err := s.atomic(func() error {
		st := s.State()
		if st != AwaitingDecision {
			return &TransitionError{Op: "newPlan", State: st}
		}
		habits = EvolvePlan(s.Habits(), s.Evaluation(), s.Catalog(), s.CurrentWeek(), s.now())
		s.sess.Set(KeyWeeklyHabits, habits)
		saveState(s.sess, PlanReady)
		s.log.Info("new plan generated", "habits", len(habits))
		return nil
	})
	return habits, err
}

// MaintainPlan repeats the current plan for another week.
func (s *Service) MaintainPlan() ([]models.Habit, error) {
	var habits []models.Habit
	err := s.atomic(func() error {
		st := s.State()
		if st != AwaitingDecision {
			return &TransitionError{Op: "maintainPlan", State: st}
		}
		habits = s.Habits()
		saveState(s.sess, PlanReady)
		return nil
	})
	return habits, err
}

// ChangeStrategy returns to the assessment. The lifetime week count is kept.
func (s *Service) ChangeStrategy() error {
	return s.atomic(func() error {
		s.sess.Remove(KeyWeeklyHabits)
		s.sess.Set(KeyStreak, 0)
		saveState(s.sess, AwaitingAssessment)
		s.log.Info("strategy changed")
		return nil
	})
}
