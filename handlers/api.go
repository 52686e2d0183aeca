package handlers

import (
	"errors"
	"net/http"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"

	"bienestar/auth"
	"bienestar/engine"
	"bienestar/i18n"
	"bienestar/models"
	"bienestar/store"
)

type sessionData struct {
	Token   string             `json:"token"`
	Profile models.UserProfile `json:"profile"`
	Gates   engine.Gates       `json:"gates"`
}

func captchaChallenge() map[string]string {
	id := captcha.New()
	return map[string]string{
		"captcha_id": id,
		"image_url":  "/captcha/" + id + ".png",
	}
}

func (a *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if secret, ok := a.secret(r); ok {
		_, authenticated = store.Load[models.UserProfile](a.Store, engine.KeyUser, secret)
	}
	online := false
	if o, ok := a.Coach.(interface{ Online() bool }); ok {
		online = o.Online()
	}
	sendData(w, map[string]any{
		"app_name":       a.Name,
		"onboarded":      a.Identity.IsOnboarded(),
		"authenticated":  authenticated,
		"coach_online":   online,
		"captcha_needed": a.limiter.NeedsCaptcha(getClientIP(r)),
	})
}

// startSession issues the cookie session and an API token for key.
func (a *App) startSession(w http.ResponseWriter, r *http.Request, key []byte, profile models.UserProfile) (sessionData, error) {
	if err := auth.SetSession(w, r, key); err != nil {
		return sessionData{}, err
	}
	token, err := auth.CreateAPIToken(key)
	if err != nil {
		return sessionData{}, err
	}
	return sessionData{Token: token, Profile: profile, Gates: a.service(key).Gates()}, nil
}

func (a *App) OnboardHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	var input struct {
		Name string `json:"name"`
		PIN  string `json:"pin"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}

	key, profile, err := a.Identity.Onboard(input.Name, input.PIN)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}

	data, err := a.startSession(w, r, key, profile)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, APIResponse{Status: "success", Message: i18n.T(lang, "ProfileCreated"), Data: data})
}

func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	ip := getClientIP(r)
	if !a.limiter.Allow(ip) {
		sendMessage(w, http.StatusTooManyRequests, lang, "TooManyAttempts")
		return
	}

	var input struct {
		PIN             string `json:"pin"`
		CaptchaID       string `json:"captcha_id"`
		CaptchaSolution string `json:"captcha_solution"`
	}
	if err := decodeBody(w, r, &input); err != nil {
		sendMessage(w, http.StatusBadRequest, lang, "InvalidRequestBody")
		return
	}

	if a.limiter.NeedsCaptcha(ip) {
		if input.CaptchaID == "" || !captcha.VerifyString(input.CaptchaID, input.CaptchaSolution) {
			sendJSONResponse(w, http.StatusBadRequest, APIResponse{
				Status:  "error",
				Message: i18n.T(lang, "CaptchaRequired"),
				Data:    captchaChallenge(),
			})
			return
		}
	}

	key, profile, err := a.Identity.Login(input.PIN)
	if errors.Is(err, auth.ErrInvalidPIN) {
		a.limiter.RecordFailure(ip)
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{
			Status:  "error",
			Message: i18n.T(lang, "InvalidPIN"),
			Data:    map[string]bool{"captcha_required": a.limiter.NeedsCaptcha(ip)},
		})
		return
	}
	if err != nil {
		a.sendError(w, lang, err)
		return
	}

	a.limiter.Reset(ip)
	data, err := a.startSession(w, r, key, profile)
	if err != nil {
		a.sendError(w, lang, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "LoginSuccess"), Data: data})
}

func (a *App) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if token := r.Header.Get("X-API-Token"); token != "" {
		auth.RevokeAPIToken(token)
	}
	auth.ClearSession(w, r)
	sendMessage(w, http.StatusOK, lang, "LoggedOut")
}

func (a *App) CaptchaHandler(w http.ResponseWriter, r *http.Request) {
	sendData(w, captchaChallenge())
}

func (a *App) CSRFTokenHandler(w http.ResponseWriter, r *http.Request) {
	sendData(w, map[string]string{"csrf_token": csrf.Token(r)})
}
