package engine

import (
	"fmt"
	"strings"

	"bienestar/store"
)

// Persisted keys.
const (
	KeyUser          = "user"
	KeyMasterData    = "master_data"
	KeyEvaluation    = "user_evaluation"
	KeyWeeklyHabits  = "weekly_habits"
	KeyDailyTasks    = "daily_tasks"
	KeyPassport      = "passport_habits"
	KeyStreak        = "streak_count"
	KeyWeek          = "week_count"
	KeyPlanDiario    = "plan_diario_enabled"
	KeyNuevoPlan     = "nuevo_plan_enabled"
	KeyMaintainPlan  = "maintain_plan_enabled"
	KeyLocked        = "assessment_locked"
	KeySubmitted     = "has_submitted"
	KeyCycleState    = "cycle_state"
	KeyNotifications = "notifications_read"
	KeySalt          = "kdf_salt"
	weekCachePrefix  = "daily_tasks_week_"
)

// WeekCacheKey is the per-day breakdown key for a streak week.
func WeekCacheKey(streak int) string {
	return fmt.Sprintf("%s%d", weekCachePrefix, streak)
}

// IsWeekCacheKey reports whether key holds a per-day breakdown.
func IsWeekCacheKey(key string) bool {
	return strings.HasPrefix(key, weekCachePrefix) && len(key) > len(weekCachePrefix)
}

// EncryptedKeys are the fixed secret-gated keys, in export order.
var EncryptedKeys = []string{
	KeyUser, KeyMasterData, KeyEvaluation, KeyWeeklyHabits, KeyDailyTasks, KeyPassport,
	KeyStreak, KeyWeek, KeyPlanDiario, KeyNuevoPlan, KeyMaintainPlan, KeyLocked, KeySubmitted,
	KeyCycleState,
}

// CycleState is the persisted phase of a user's weekly cycle.
type CycleState string

const (
	AwaitingAssessment CycleState = "awaiting_assessment"
	PlanReady          CycleState = "plan_ready"
	PlanRunning        CycleState = "plan_running"
	AwaitingDecision   CycleState = "awaiting_decision"
)

// Valid reports whether c is one of the known cycle states.
func (c CycleState) Valid() bool {
	switch c {
	case AwaitingAssessment, PlanReady, PlanRunning, AwaitingDecision:
		return true
	}
	return false
}

// Gates is the flag projection of a cycle state.
type Gates struct {
	AssessmentLocked bool `json:"assessmentLocked"`
	HasSubmitted     bool `json:"hasSubmitted"`
	PlanDiario       bool `json:"planDiarioEnabled"`
	NuevoPlan        bool `json:"nuevoPlanEnabled"`
	MaintainPlan     bool `json:"maintainPlanEnabled"`
}

// Gates derives the UI gates unlocked in state c.
func (c CycleState) Gates() Gates {
	switch c {
	case PlanReady, PlanRunning:
		return Gates{AssessmentLocked: true, HasSubmitted: true, PlanDiario: true}
	case AwaitingDecision:
		return Gates{AssessmentLocked: true, HasSubmitted: true, NuevoPlan: true, MaintainPlan: true}
	default:
		return Gates{}
	}
}

// StateFromGates recovers a state from flags alone, as found in older backups.
func StateFromGates(g Gates) CycleState {
	switch {
	case g.NuevoPlan || g.MaintainPlan:
		return AwaitingDecision
	case g.PlanDiario, g.AssessmentLocked:
		return PlanReady
	default:
		return AwaitingAssessment
	}
}

func loadGates(sess *store.Session) Gates {
	return Gates{
		AssessmentLocked: store.LoadOr(sess, KeyLocked, false),
		HasSubmitted:     store.LoadOr(sess, KeySubmitted, false),
		PlanDiario:       store.LoadOr(sess, KeyPlanDiario, false),
		NuevoPlan:        store.LoadOr(sess, KeyNuevoPlan, false),
		MaintainPlan:     store.LoadOr(sess, KeyMaintainPlan, false),
	}
}

func loadState(sess *store.Session) CycleState {
	if st, ok := store.LoadAs[CycleState](sess, KeyCycleState); ok && st.Valid() {
		return st
	}
	return StateFromGates(loadGates(sess))
}

// saveState writes the state and its flag projection.
func saveState(sess *store.Session, st CycleState) {
	g := st.Gates()
	sess.Set(KeyCycleState, st)
	sess.Set(KeyPlanDiario, g.PlanDiario)
	sess.Set(KeyNuevoPlan, g.NuevoPlan)
	sess.Set(KeyMaintainPlan, g.MaintainPlan)
	if g.AssessmentLocked {
		sess.Set(KeyLocked, true)
		sess.Set(KeySubmitted, true)
	} else {
		sess.Remove(KeyLocked)
		sess.Remove(KeySubmitted)
	}
}
