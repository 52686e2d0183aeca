package engine

import (
	"fmt"
	"math"
	"strings"

	"bienestar/models"
	"bienestar/store"
)

// MergeSavedScores copies saved scores onto areas with the same name and dimension.
func MergeSavedScores(areas, saved []models.AssessmentArea) []models.AssessmentArea {
	out := make([]models.AssessmentArea, len(areas))
	for i, a := range areas {
		out[i] = a
		for _, sv := range saved {
			if strings.EqualFold(sv.Name, a.Name) && sv.Dimension == a.Dimension {
				out[i].Score = sv.Score
				break
			}
		}
	}
	return out
}

// Evaluation is the saved assessment, empty when none was scored.
func (s *Service) Evaluation() []models.AssessmentArea {
	return store.LoadOr(s.sess, KeyEvaluation, []models.AssessmentArea{})
}

// Assessment returns the catalog areas with any saved scores merged in.
func (s *Service) Assessment() []models.AssessmentArea {
	return MergeSavedScores(s.Catalog().Areas(), s.Evaluation())
}

func validScore(n int) bool {
	return n >= models.MinScore && n <= models.MaxScore
}

// ScoreArea sets the score of one area ahead of submission.
func (s *Service) ScoreArea(id string, score int) ([]models.AssessmentArea, error) {
	if !validScore(score) {
		return nil, ErrInvalidScore
	}
	var areas []models.AssessmentArea
	err := s.atomic(func() error {
		if s.State() != AwaitingAssessment {
			return ErrAssessmentLocked
		}
		areas = s.Assessment()
		for i := range areas {
			if areas[i].ID == id {
				areas[i].Score = score
				s.sess.Set(KeyEvaluation, areas)
				return nil
			}
		}
		return ErrAreaNotFound
	})
	return areas, err
}

// SubmitAssessment locks the assessment and makes the first week runnable
// directly, without a newPlan or maintainPlan decision. Nothing is written
// unless the submission yields at least one habit.
func (s *Service) SubmitAssessment(areas []models.AssessmentArea) ([]models.Habit, error) {
	if len(areas) == 0 {
		return nil, ErrNoAreas
	}
	for _, a := range areas {
		if !a.Dimension.Valid() {
			return nil, fmt.Errorf("%w: %q (area %s)", ErrUnknownDimension, a.Dimension, a.Name)
		}
		if !validScore(a.Score) {
			return nil, ErrInvalidScore
		}
		if a.Score == 0 {
			return nil, ErrIncompleteAssessment
		}
	}

	var habits []models.Habit
	err := s.atomic(func() error {
		if s.State() != AwaitingAssessment {
			return ErrAssessmentLocked
		}
		habits = GenerateInitialPlan(areas, s.Catalog(), s.now())
		if activeHabits(habits) == 0 {
			return ErrEmptyPlan
		}

		s.sess.Set(KeyEvaluation, areas)
		s.sess.Set(KeyWeeklyHabits, habits)
		s.sess.Set(KeyStreak, 1)
		saveState(s.sess, PlanReady)
		s.log.Info("initial plan generated", "dimension", PriorityDimension(areas), "habits", len(habits))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return habits, nil
}

// DimensionProgress is a dimension's score as a percentage of the maximum.
type DimensionProgress struct {
	Dimension models.Dimension `json:"dimension"`
	Percent   int              `json:"percent"`
}

// Progress reports per-dimension percentages and their mean.
func Progress(areas []models.AssessmentArea) ([]DimensionProgress, int) {
	out := make([]DimensionProgress, 0, len(models.Dimensions))
	total := 0.0
	for _, d := range models.Dimensions {
		sum, n := 0, 0
		for _, a := range areas {
			if a.Dimension == d {
				sum += a.Score
				n++
			}
		}
		pct := 0.0
		if n > 0 {
			pct = float64(sum) / float64(n*models.MaxScore) * 100
		}
		total += pct
		out = append(out, DimensionProgress{Dimension: d, Percent: int(math.Round(pct))})
	}
	return out, int(math.Round(total / float64(len(models.Dimensions))))
}
