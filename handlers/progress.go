package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"bienestar/auth"
	"bienestar/backup"
	"bienestar/engine"
	"bienestar/i18n"
	"bienestar/models"
)

func (a *App) ProfileHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	u, ok := svc.Profile()
	if !ok {
		a.sendError(w, lang, engine.ErrNoProfile)
		return
	}
	sendData(w, u)
}

func (a *App) UpdateProfileHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	u, err := svc.UpdateProfile(strings.TrimSpace(input.Name), strings.TrimSpace(input.AvatarURL))
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, u)
}

func (a *App) CatalogHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	cat := svc.Catalog()
	sendData(w, map[string]any{
		"entries": cat.Entries(),
		"summary": cat.Summary(),
		"custom":  svc.Session().Exists(engine.KeyMasterData),
	})
}

func (a *App) UploadCatalogHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Entries []models.MasterHabitEntry `json:"entries"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	cat, err := svc.SetCatalog(input.Entries)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendData(w, map[string]any{"entries": cat.Len(), "summary": cat.Summary()})
}

func (a *App) ResetCatalogHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	svc.ResetCatalog()
	sendMessage(w, http.StatusOK, lang, "CatalogReset")
}

func (a *App) PassportHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	q := r.URL.Query()
	rows, summary := engine.FilterPassport(svc.Passport(), models.Dimension(q.Get("dimension")), models.PassportStatus(q.Get("status")))
	sendData(w, map[string]any{"entries": rows, "summary": summary})
}

func (a *App) StatsHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	sendData(w, svc.Statistics())
}

func (a *App) AchievementsHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	sendData(w, svc.Achievements())
}

type dashboardView struct {
	Profile      models.UserProfile         `json:"profile"`
	State        string                     `json:"state"`
	Gates        engine.Gates               `json:"gates"`
	Week         int                        `json:"week"`
	WeekProgress int                        `json:"weekProgress"`
	Assessment   []engine.DimensionProgress `json:"assessment"`
	Priority     models.Dimension           `json:"priority,omitempty"`
	Tip          string                     `json:"tip"`
	Quote        string                     `json:"quote"`
}

// DashboardHandler fetches the coach tip and quote concurrently.
func (a *App) DashboardHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	u, _ := svc.Profile()
	st := svc.State()
	evaluation := svc.Evaluation()
	progress, _ := engine.Progress(evaluation)

	view := dashboardView{
		Profile:    u,
		State:      string(st),
		Gates:      st.Gates(),
		Week:       svc.CurrentWeek(),
		Assessment: progress,
	}
	if st == engine.PlanRunning {
		view.WeekProgress = engine.WeeklyProgress(svc.Week())
	}
	focus := models.Mind
	if len(evaluation) > 0 {
		focus = engine.PriorityDimension(evaluation)
		view.Priority = focus
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		view.Tip = a.Coach.Tip(ctx, u.Name, focus)
		return nil
	})
	g.Go(func() error {
		view.Quote = a.Coach.Quote(ctx)
		return nil
	})
	_ = g.Wait()

	sendData(w, view)
}

func (a *App) CoachHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Query string `json:"query"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		sendMessage(w, http.StatusBadRequest, lang, "QueryRequired")
		return
	}
	sendData(w, map[string]string{"answer": a.Coach.Ask(r.Context(), query)})
}

func (a *App) ExportHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	doc := backup.Export(svc.Session(), a.Now())
	name := fmt.Sprintf("bienestar-backup-%s.json", doc.Timestamp.Format("2006-01-02"))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := backup.Encode(w, doc); err != nil {
		a.Log.Error("export failed", "error", err)
	}
}

func (a *App) ImportHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Confirm  bool            `json:"confirm"`
		Document json.RawMessage `json:"document"`
	}
	if err := decodeBody(w, r, &input); err != nil || len(input.Document) == 0 {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	doc, err := backup.Decode(bytes.NewReader(input.Document))
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	res, err := backup.Import(svc.Session(), doc, input.Confirm)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	a.Log.Info("backup imported", "restored", len(res.Restored), "skipped", len(res.Skipped))
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "ImportDone"), Data: res})
}

func (a *App) ResetHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}
	if !input.Confirm {
		a.sendError(w, lang, backup.ErrNotConfirmed)
		return
	}

	a.Identity.ClearData()
	if err := auth.RevokeAllAPITokens(); err != nil {
		a.Log.Error("revoking tokens failed", "error", err)
	}
	auth.ClearSession(w, r)
	sendMessage(w, http.StatusOK, lang, "DataCleared")
}

func (a *App) NotificationsHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	v, _ := a.Store.GetPlain(engine.KeyNotifications)
	sendData(w, map[string]bool{"read": v == "true"})
}

func (a *App) MarkNotificationsHandler(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string) {
	a.Store.SetPlain(engine.KeyNotifications, "true")
	sendData(w, map[string]bool{"read": true})
}
