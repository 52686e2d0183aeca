package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bienestar/catalog"
	"bienestar/models"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) // a Wednesday

func area(id, name string, dim models.Dimension, score int) models.AssessmentArea {
	return models.AssessmentArea{ID: id, Name: name, Dimension: dim, Score: score}
}

func sixAreas() []models.AssessmentArea {
	return []models.AssessmentArea{
		area("area_0", "Sueño reparador", models.Mind, 1),
		area("area_3", "Manejo del estrés", models.Mind, 1),
		area("area_9", "Actividad física", models.Body, 3),
		area("area_12", "Alimentación", models.Body, 3),
		area("area_18", "Gratitud", models.Spirit, 2),
		area("area_21", "Propósito", models.Spirit, 2),
	}
}

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func TestPriorityDimensionFirstMinimumWins(t *testing.T) {
	areas := []models.AssessmentArea{
		area("a", "x", models.Mind, 1),
		area("b", "y", models.Body, 2),
		area("c", "z", models.Spirit, 1),
	}
	assert.Equal(t, models.Mind, PriorityDimension(areas))

	areas[0].Score = 3
	assert.Equal(t, models.Spirit, PriorityDimension(areas))
}

func TestDimensionAveragesEmptyDimension(t *testing.T) {
	avgs := DimensionAverages([]models.AssessmentArea{area("a", "x", models.Body, 2)})
	require.Len(t, avgs, 3)
	assert.Equal(t, 0.0, avgs[0].Average)
	assert.Equal(t, 2.0, avgs[1].Average)

	// An area-less dimension averages 0 and therefore wins.
	assert.Equal(t, models.Mind, PriorityDimension([]models.AssessmentArea{area("a", "x", models.Body, 2)}))
}

func TestGenerateInitialPlanScenario(t *testing.T) {
	habits := GenerateInitialPlan(sixAreas(), catalog.Default(), fixedNow)

	require.Len(t, habits, 2)
	for _, h := range habits {
		assert.Equal(t, models.Mind, h.Dimension)
		assert.Equal(t, models.InProgress, h.Status)
		assert.Equal(t, 1, h.Week)
		assert.Equal(t, fixedNow, h.DateAdded)
		assert.Equal(t, h.Title, h.SubDimension)
	}
	assert.Equal(t, "area_0", habits[0].ID)

	want, ok := catalog.Default().Match("Sueño reparador", 1)
	require.True(t, ok)
	assert.Equal(t, want.Description, habits[0].Description)
}

func TestGenerateInitialPlanNormalizesNames(t *testing.T) {
	cat, err := catalog.New([]models.MasterHabitEntry{
		{Name: "sueño reparador", Dimension: models.Mind, Score: 1, Description: "dormir mejor"},
	})
	require.NoError(t, err)

	habits := GenerateInitialPlan([]models.AssessmentArea{area("a", "Sueño  reparador", models.Mind, 1)}, cat, fixedNow)
	require.Len(t, habits, 1)
	assert.Equal(t, "dormir mejor", habits[0].Description)
}

func TestGenerateInitialPlanCatalogMiss(t *testing.T) {
	habits := GenerateInitialPlan([]models.AssessmentArea{area("a", "Desconocida", models.Mind, 2)}, catalog.Default(), fixedNow)
	require.Len(t, habits, 1)
	assert.Equal(t, "Hábito para Desconocida - Score 2", habits[0].Description)
}

func TestBuildDailyTasksSkipsDeleted(t *testing.T) {
	habits := []models.Habit{
		{ID: "a", Title: "A", Description: "da", Status: models.InProgress},
		{ID: "b", Title: "B", Status: models.Deleted},
		{ID: "c", Title: "C", Description: "dc", Status: models.Completed, Dimension: models.Body},
	}
	tasks := BuildDailyTasks(habits)

	require.Len(t, tasks, 2)
	assert.Equal(t, models.DailyTask{ID: 1, Title: "A", Subtitle: "da"}, tasks[0])
	assert.Equal(t, models.DailyTask{ID: 2, Title: "C", Subtitle: "dc", Dimension: models.Body}, tasks[1])
}

func TestBuildPassportEntries(t *testing.T) {
	added := fixedNow.Add(-48 * time.Hour)
	habits := []models.Habit{
		{ID: "a", Title: "A", Dimension: models.Mind, SubDimension: "A", Status: models.Completed, DateAdded: added},
		{ID: "b", Title: "B", Dimension: models.Body, Status: models.Deleted},
		{ID: "c", Title: "C", Dimension: models.Spirit, Status: models.InProgress},
	}
	entries := BuildPassportEntries(habits, 3, fixedNow, counterIDs())

	require.Len(t, entries, 3)
	assert.Equal(t, models.PassportCompleted, entries[0].Status)
	assert.Equal(t, models.PassportDeleted, entries[1].Status)
	assert.Equal(t, models.PassportInProgress, entries[2].Status)

	assert.Equal(t, "Semana 3", entries[0].Week)
	assert.Equal(t, "week3_a_id1", entries[0].ID)
	assert.Equal(t, added, entries[0].DateAdded)
	assert.Equal(t, fixedNow, entries[1].DateAdded)

	assert.Equal(t, "psychology", entries[0].Icon)
	assert.Equal(t, "accessibility_new", entries[1].Icon)
	assert.Equal(t, "self_improvement", entries[2].Icon)
}

func TestMergePassportReplacesOnlyThatWeek(t *testing.T) {
	existing := []models.PassportEntry{
		{ID: "1", Week: "Semana 1"},
		{ID: "2", Week: "Semana 2"},
		{ID: "3", Week: "Semana 2"},
	}
	merged := MergePassport(existing, 2, []models.PassportEntry{{ID: "4", Week: "Semana 2"}})

	ids := make([]string, len(merged))
	for i, e := range merged {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"1", "4"}, ids)
}

func TestUpgradeMonotonicity(t *testing.T) {
	cat := catalog.Default()
	tier2, _ := cat.Match("Gratitud", 2)
	tier3, _ := cat.Match("Gratitud", 3)
	hyd3, _ := cat.Match("Hidratación", 3)

	habits := []models.Habit{
		{ID: "g", SubDimension: "Gratitud", Description: tier2.Description, Status: models.Completed},
		{ID: "h", SubDimension: "Hidratación", Description: hyd3.Description, Status: models.Completed},
		{ID: "p", SubDimension: "Gratitud", Description: tier2.Description, Status: models.InProgress},
	}
	out := UpgradeHabits(habits, cat, nil)

	assert.Equal(t, tier3.Description, out[0].Description)
	assert.Equal(t, models.InProgress, out[0].Status)

	assert.Equal(t, habits[1], out[1], "mastered habit is left as is")
	assert.Equal(t, habits[2], out[2], "only completed habits are upgraded")

	// The input slice is not modified.
	assert.Equal(t, models.Completed, habits[0].Status)
}

func TestUpgradeFallsBackToAssessmentScore(t *testing.T) {
	cat := catalog.Default()
	tier3, _ := cat.Match("Propósito", 3)

	habits := []models.Habit{{ID: "p", SubDimension: "Propósito", Description: "Meta: Propósito (Nivel 2)", Status: models.Completed}}
	out := UpgradeHabits(habits, cat, []models.AssessmentArea{area("x", "propósito", models.Spirit, 2)})

	assert.Equal(t, tier3.Description, out[0].Description)
	assert.Equal(t, models.InProgress, out[0].Status)

	// Without any tier information the habit is treated as tier 1.
	tier2, _ := cat.Match("Propósito", 2)
	out = UpgradeHabits(habits, cat, nil)
	assert.Equal(t, tier2.Description, out[0].Description)
}

func TestExpandPlan(t *testing.T) {
	areas := []models.AssessmentArea{
		area("a1", "Gratitud", models.Spirit, 3),
		area("a2", "Sueño reparador", models.Mind, 1),
		area("a3", "Actividad física", models.Body, 2),
		area("a4", "Propósito", models.Spirit, 1),
		area("a5", "Alimentación", models.Body, 2),
		area("a6", "Conexión", models.Spirit, 2),
		area("a7", "Desconocida", models.Mind, 1),
	}
	current := []models.Habit{{ID: "x", SubDimension: "sueño reparador", Status: models.Completed}}

	added := ExpandPlan(current, areas, catalog.Default(), 2, fixedNow)

	require.Len(t, added, 4)
	names := []string{added[0].Title, added[1].Title, added[2].Title, added[3].Title}
	assert.Equal(t, []string{"Propósito", "Desconocida", "Actividad física", "Alimentación"}, names)

	for _, h := range added {
		assert.Equal(t, models.InProgress, h.Status)
		assert.Equal(t, 2, h.Week)
	}
	assert.Equal(t, fmt.Sprintf("new_%d_a4", fixedNow.UnixMilli()), added[0].ID)
	assert.Equal(t, "Meta: Desconocida (Nivel 1)", added[1].Description)
}

func TestEvolvePlan(t *testing.T) {
	cat := catalog.Default()
	t1, _ := cat.Match("Sueño reparador", 1)
	t2, _ := cat.Match("Sueño reparador", 2)

	current := []models.Habit{{ID: "s", Title: "Sueño reparador", SubDimension: "Sueño reparador", Description: t1.Description, Status: models.Completed}}
	plan := EvolvePlan(current, sixAreas(), cat, 2, fixedNow)

	require.Len(t, plan, 5)
	assert.Equal(t, t2.Description, plan[0].Description)
	assert.Equal(t, "Manejo del estrés", plan[1].Title, "next weakest area follows the upgraded habits")
}
