package handlers

import (
	"context"
	"net/http"

	"bienestar/engine"
	"bienestar/models"
)

type assessmentView struct {
	Areas    []models.AssessmentArea    `json:"areas"`
	Progress []engine.DimensionProgress `json:"progress"`
	Total    int                        `json:"total"`
	Locked   bool                       `json:"locked"`
}

func newAssessmentView(svc *engine.Service, areas []models.AssessmentArea) assessmentView {
	progress, total := engine.Progress(areas)
	return assessmentView{
		Areas:    areas,
		Progress: progress,
		Total:    total,
		Locked:   svc.State() != engine.AwaitingAssessment,
	}
}

func (a *App) AssessmentHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	sendData(w, newAssessmentView(svc, svc.Assessment()))
}

func (a *App) ScoreAreaHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	areas, err := svc.ScoreArea(input.ID, input.Score)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, newAssessmentView(svc, areas))
}

// SubmitAssessmentHandler submits the areas in the body, or the saved
// assessment when the body carries none.
func (a *App) SubmitAssessmentHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Areas []models.AssessmentArea `json:"areas"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &input); err != nil {
			sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
			return
		}
	}
	areas := input.Areas
	if len(areas) == 0 {
		areas = svc.Assessment()
	}

	habits, err := svc.SubmitAssessment(areas)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.AnalysisTimeout)
	defer cancel()
	sendData(w, map[string]any{
		"habits":   habits,
		"gates":    svc.Gates(),
		"priority": engine.PriorityDimension(areas),
		"analysis": a.Coach.AnalyzeAssessment(ctx, areas),
	})
}

type planView struct {
	Week   int            `json:"week"`
	State  string         `json:"state"`
	Gates  engine.Gates   `json:"gates"`
	Habits []models.Habit `json:"habits"`
}

func newPlanView(svc *engine.Service, habits []models.Habit) planView {
	st := svc.State()
	return planView{Week: svc.CurrentWeek(), State: string(st), Gates: st.Gates(), Habits: habits}
}

func (a *App) WeeklyPlanHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	habits, err := svc.WeeklyPlan()
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, newPlanView(svc, habits))
}

func (a *App) CycleStatusHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	sendData(w, newPlanView(svc, svc.Habits()))
}

func (a *App) HabitStatusHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		ID     string             `json:"id"`
		Status models.HabitStatus `json:"status"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	habit, err := svc.SetHabitStatus(input.ID, input.Status)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, habit)
}

func (a *App) DailyPlanHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	tasks, err := svc.GenerateDailyPlan()
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, map[string]any{"tasks": tasks, "gates": svc.Gates()})
}

type weekView struct {
	Week     int             `json:"week"`
	Today    string          `json:"today"`
	Progress int             `json:"progress"`
	Days     models.WeekData `json:"days"`
}

func (a *App) newWeekView(svc *engine.Service, week models.WeekData) weekView {
	return weekView{
		Week:     svc.CurrentWeek(),
		Today:    models.Days[engine.DayIndex(a.Now())],
		Progress: engine.WeeklyProgress(week),
		Days:     week,
	}
}

func (a *App) WeekHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	sendData(w, a.newWeekView(svc, svc.Week()))
}

func (a *App) ToggleTaskHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Day    string `json:"day"`
		TaskID int    `json:"taskId"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	week, err := svc.ToggleTask(input.Day, input.TaskID)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, a.newWeekView(svc, week))
}

func (a *App) ReflectionHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Day  string `json:"day"`
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	week, err := svc.SetReflection(input.Day, input.Text)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, a.newWeekView(svc, week))
}

func (a *App) ReportHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	sendData(w, svc.WeeklyReport())
}

func (a *App) AdvanceWeekHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	if err := svc.AdvanceWeek(); err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, newPlanView(svc, svc.Habits()))
}

func (a *App) NewPlanHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	habits, err := svc.NewPlan()
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, newPlanView(svc, habits))
}

func (a *App) MaintainPlanHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	habits, err := svc.MaintainPlan()
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, newPlanView(svc, habits))
}

func (a *App) ChangeStrategyHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	if err := svc.ChangeStrategy(); err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, newPlanView(svc, nil))
}
