package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"bienestar/config"
	"bienestar/crypto"
	"bienestar/db"
)

var Store *sessions.CookieStore

const (
	SessionName = "bienestar-session"
	TokenTTL    = 7 * 24 * time.Hour
)

func InitStore() {
	// Derive two 32-byte keys from the session key
	// Auth key for signing (HMAC)
	authKey := sha256.Sum256([]byte(config.AppConfig.SessionKey + "auth"))
	// Encryption key for content encryption (AES)
	encKey := sha256.Sum256([]byte(config.AppConfig.SessionKey + "encryption"))

	Store = sessions.NewCookieStore(authKey[:], encKey[:])

	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   config.AppConfig.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// GetMasterKey returns the record key held by the cookie session, or nil.
func GetMasterKey(r *http.Request) []byte {
	session, _ := Store.Get(r, SessionName)
	val, ok := session.Values["masterKey"].(string)
	if !ok {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(val)
	if err != nil || len(key) != crypto.KeySize {
		return nil
	}
	return key
}

func SetSession(w http.ResponseWriter, r *http.Request, masterKey []byte) error {
	session, _ := Store.Get(r, SessionName)
	session.Values["masterKey"] = base64.StdEncoding.EncodeToString(masterKey)
	return session.Save(r, w)
}

func ClearSession(w http.ResponseWriter, r *http.Request) {
	session, _ := Store.Get(r, SessionName)
	delete(session.Values, "masterKey")
	session.Options.MaxAge = -1
	session.Save(r, w)
}

// APISession is a token-authenticated session, persisted across restarts.
type APISession struct {
	Token     string
	MasterKey []byte
	ExpiresAt time.Time
}

func serverKey() []byte {
	k := sha256.Sum256([]byte(config.AppConfig.SessionKey))
	return k[:]
}

// CreateAPIToken stores the master key wrapped under the server key.
func CreateAPIToken(masterKey []byte) (string, error) {
	token := generateRandomToken(32)

	encryptedKey, err := crypto.EncryptString(base64.StdEncoding.EncodeToString(masterKey), serverKey())
	if err != nil {
		return "", fmt.Errorf("wrap master key: %w", err)
	}

	expires := time.Now().Add(TokenTTL).UTC()
	_, err = db.DB.Exec("INSERT INTO api_sessions (token, encrypted_master_key, expires_at) VALUES (?, ?, ?)",
		token, encryptedKey, expires)
	if err != nil {
		return "", fmt.Errorf("store api token: %w", err)
	}
	return token, nil
}

func GetAPISession(token string) (APISession, bool) {
	sess := APISession{Token: token}
	var encryptedKey string

	err := db.DB.QueryRow("SELECT encrypted_master_key, expires_at FROM api_sessions WHERE token = ?", token).
		Scan(&encryptedKey, &sess.ExpiresAt)
	if err != nil {
		return APISession{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		RevokeAPIToken(token)
		return APISession{}, false
	}

	decryptedKeyB64, err := crypto.DecryptString(encryptedKey, serverKey())
	if err != nil {
		return APISession{}, false
	}

	sess.MasterKey, err = base64.StdEncoding.DecodeString(decryptedKeyB64)
	if err != nil {
		return APISession{}, false
	}
	return sess, true
}

func RevokeAPIToken(token string) {
	db.DB.Exec("DELETE FROM api_sessions WHERE token = ?", token)
}

// RevokeAllAPITokens is used when all data is cleared.
func RevokeAllAPITokens() error {
	_, err := db.DB.Exec("DELETE FROM api_sessions")
	return err
}

// PurgeExpiredTokens deletes expired tokens and reports how many were removed.
func PurgeExpiredTokens() (int64, error) {
	res, err := db.DB.Exec("DELETE FROM api_sessions WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func generateRandomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// Without randomness no token can be issued safely.
		panic(fmt.Sprintf("critical security error: failed to generate random token: %v", err))
	}
	return base64.URLEncoding.EncodeToString(b)
}
