package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dchest/captcha"

	"bienestar/auth"
	"bienestar/backup"
	"bienestar/catalog"
	"bienestar/coach"
	"bienestar/engine"
	"bienestar/i18n"
	"bienestar/logger"
	"bienestar/models"
	"bienestar/store"
)

// App carries the collaborators shared by every handler.
type App struct {
	Name     string
	Store    *store.Store
	Identity *auth.Identity
	Catalog  *catalog.Catalog
	Coach    coach.Coach
	Log      *logger.Logger
	Now      func() time.Time

	// AnalysisTimeout bounds the coach analysis inside the submit response.
	AnalysisTimeout time.Duration

	limiter *rateLimiter
}

const defaultAnalysisTimeout = 5 * time.Second

func NewApp(name string, st *store.Store, cat *catalog.Catalog, c coach.Coach, log *logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}
	if c == nil {
		c = coach.New(nil, 0, log)
	}
	return &App{
		Name:     name,
		Store:    st,
		Identity: auth.NewIdentity(st, log),
		Catalog:  cat,
		Coach:    c,
		Log:      log.With("component", "http"),
		Now:      time.Now,

		AnalysisTimeout: defaultAnalysisTimeout,
		limiter:         newRateLimiter(),
	}
}

func (a *App) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("GET /captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))

	mux.HandleFunc("GET /api/v1/status", a.StatusHandler)
	mux.HandleFunc("POST /api/v1/onboard", a.OnboardHandler)
	mux.HandleFunc("POST /api/v1/login", a.LoginHandler)
	mux.HandleFunc("POST /api/v1/logout", a.LogoutHandler)
	mux.HandleFunc("GET /api/v1/captcha", a.CaptchaHandler)
	mux.HandleFunc("GET /api/v1/csrf", a.CSRFTokenHandler)

	mux.HandleFunc("GET /api/v1/profile", a.withService(a.ProfileHandler))
	mux.HandleFunc("PUT /api/v1/profile", a.withService(a.UpdateProfileHandler))
	mux.HandleFunc("GET /api/v1/catalog", a.withService(a.CatalogHandler))
	mux.HandleFunc("POST /api/v1/catalog", a.withService(a.UploadCatalogHandler))
	mux.HandleFunc("DELETE /api/v1/catalog", a.withService(a.ResetCatalogHandler))

	mux.HandleFunc("GET /api/v1/assessment", a.withService(a.AssessmentHandler))
	mux.HandleFunc("PUT /api/v1/assessment/score", a.withService(a.ScoreAreaHandler))
	mux.HandleFunc("POST /api/v1/assessment/submit", a.withService(a.SubmitAssessmentHandler))

	mux.HandleFunc("GET /api/v1/plan/weekly", a.withService(a.WeeklyPlanHandler))
	mux.HandleFunc("GET /api/v1/plan/weekly/status", a.withService(a.CycleStatusHandler))
	mux.HandleFunc("PUT /api/v1/plan/weekly/status", a.withService(a.HabitStatusHandler))
	mux.HandleFunc("POST /api/v1/plan/daily", a.withService(a.DailyPlanHandler))
	mux.HandleFunc("GET /api/v1/plan/week", a.withService(a.WeekHandler))
	mux.HandleFunc("POST /api/v1/plan/week/toggle", a.withService(a.ToggleTaskHandler))
	mux.HandleFunc("POST /api/v1/plan/week/reflection", a.withService(a.ReflectionHandler))
	mux.HandleFunc("GET /api/v1/plan/report", a.withService(a.ReportHandler))
	mux.HandleFunc("POST /api/v1/plan/advance", a.withService(a.AdvanceWeekHandler))
	mux.HandleFunc("POST /api/v1/plan/new", a.withService(a.NewPlanHandler))
	mux.HandleFunc("POST /api/v1/plan/maintain", a.withService(a.MaintainPlanHandler))
	mux.HandleFunc("POST /api/v1/plan/strategy", a.withService(a.ChangeStrategyHandler))

	mux.HandleFunc("GET /api/v1/passport", a.withService(a.PassportHandler))
	mux.HandleFunc("GET /api/v1/stats", a.withService(a.StatsHandler))
	mux.HandleFunc("GET /api/v1/achievements", a.withService(a.AchievementsHandler))
	mux.HandleFunc("GET /api/v1/dashboard", a.withService(a.DashboardHandler))
	mux.HandleFunc("POST /api/v1/coach", a.withService(a.CoachHandler))

	mux.HandleFunc("GET /api/v1/export", a.withService(a.ExportHandler))
	mux.HandleFunc("POST /api/v1/import", a.withService(a.ImportHandler))
	mux.HandleFunc("POST /api/v1/reset", a.withService(a.ResetHandler))
	mux.HandleFunc("GET /api/v1/notifications/read", a.withService(a.NotificationsHandler))
	mux.HandleFunc("POST /api/v1/notifications/read", a.withService(a.MarkNotificationsHandler))
}

// Handler returns the full middleware chain around a fresh mux.
func (a *App) Handler(csrfKey []byte, secureCookies bool) http.Handler {
	mux := http.NewServeMux()
	a.RegisterHandlers(mux)
	return SecurityHeadersMiddleware(CORSMiddleware(CSRFMiddleware(csrfKey, secureCookies)(mux)))
}

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func sendData(w http.ResponseWriter, data any) {
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: data})
}

func sendMessage(w http.ResponseWriter, status int, lang, key string) {
	result := "error"
	if status < 400 {
		result = "success"
	}
	sendJSONResponse(w, status, APIResponse{Status: result, Message: i18n.T(lang, key)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

type errorMapping struct {
	err    error
	status int
	key    string
}

var errorTable = []errorMapping{
	{engine.ErrAssessmentLocked, http.StatusConflict, "AssessmentLocked"},
	{engine.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
	{engine.ErrEmptyPlan, http.StatusConflict, "EmptyPlan"},
	{engine.ErrNoAreas, http.StatusBadRequest, "NoAreas"},
	{engine.ErrIncompleteAssessment, http.StatusBadRequest, "IncompleteAssessment"},
	{engine.ErrInvalidScore, http.StatusBadRequest, "InvalidScore"},
	{engine.ErrUnknownDimension, http.StatusBadRequest, "UnknownDimension"},
	{engine.ErrInvalidStatus, http.StatusBadRequest, "InvalidStatus"},
	{engine.ErrUnknownDay, http.StatusBadRequest, "UnknownDay"},
	{engine.ErrFutureDay, http.StatusBadRequest, "FutureDay"},
	{engine.ErrHabitNotFound, http.StatusNotFound, "HabitNotFound"},
	{engine.ErrAreaNotFound, http.StatusNotFound, "AreaNotFound"},
	{engine.ErrTaskNotFound, http.StatusNotFound, "TaskNotFound"},
	{engine.ErrNoProfile, http.StatusNotFound, "NoProfile"},
	{catalog.ErrEmpty, http.StatusBadRequest, "InvalidCatalog"},
	{catalog.ErrInvalid, http.StatusBadRequest, "InvalidCatalog"},
	{backup.ErrNotConfirmed, http.StatusBadRequest, "NotConfirmed"},
	{backup.ErrUnsupportedVersion, http.StatusBadRequest, "UnsupportedBackup"},
	{backup.ErrMalformed, http.StatusBadRequest, "MalformedBackup"},
	{backup.ErrNoProfile, http.StatusBadRequest, "BackupNoProfile"},
	{auth.ErrInvalidPIN, http.StatusUnauthorized, "InvalidPIN"},
	{auth.ErrPINFormat, http.StatusBadRequest, "PINFormat"},
	{auth.ErrNameRequired, http.StatusBadRequest, "NameRequired"},
	{auth.ErrAlreadyOnboarded, http.StatusConflict, "AlreadyOnboarded"},
	{auth.ErrNotOnboarded, http.StatusNotFound, "NotOnboarded"},
}

// sendError maps domain errors to a status and a translated message.
func (a *App) sendError(w http.ResponseWriter, lang string, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			sendJSONResponse(w, m.status, APIResponse{Status: "error", Message: i18n.T(lang, m.key), Data: map[string]string{"error": err.Error()}})
			return
		}
	}
	a.Log.Error("request failed", "error", err)
	sendMessage(w, http.StatusInternalServerError, lang, "InternalServerError")
}

// secret resolves the record key from the API token or the cookie session.
func (a *App) secret(r *http.Request) ([]byte, bool) {
	if token := r.Header.Get("X-API-Token"); token != "" {
		sess, ok := auth.GetAPISession(token)
		if !ok {
			return nil, false
		}
		return sess.MasterKey, true
	}
	key := auth.GetMasterKey(r)
	return key, key != nil
}

func (a *App) service(secret []byte) *engine.Service {
	return engine.NewService(a.Store, secret, a.Catalog, a.Log, engine.WithClock(a.Now))
}

type serviceHandler func(w http.ResponseWriter, r *http.Request, svc *engine.Service, lang string)

// withService rejects requests whose key does not open the stored profile.
func (a *App) withService(h serviceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.DetectLanguage(r)
		secret, ok := a.secret(r)
		if !ok {
			sendMessage(w, http.StatusUnauthorized, lang, "Unauthorized")
			return
		}
		if _, ok := store.Load[models.UserProfile](a.Store, engine.KeyUser, secret); !ok {
			sendMessage(w, http.StatusUnauthorized, lang, "Unauthorized")
			return
		}
		h(w, r, a.service(secret), lang)
	}
}
