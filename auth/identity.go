package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"bienestar/crypto"
	"bienestar/engine"
	"bienestar/logger"
	"bienestar/models"
	"bienestar/store"
)

const PINLength = 8

var (
	ErrInvalidPIN       = errors.New("invalid PIN")
	ErrPINFormat        = fmt.Errorf("PIN must be exactly %d digits", PINLength)
	ErrNameRequired     = errors.New("name is required")
	ErrAlreadyOnboarded = errors.New("a profile already exists")
	ErrNotOnboarded     = errors.New("no profile exists yet")
)

// ValidatePIN checks the PIN format.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return ErrPINFormat
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return ErrPINFormat
		}
	}
	return nil
}

// Identity owns onboarding and PIN login against the record store.
type Identity struct {
	store *store.Store
	log   *logger.Logger
}

func NewIdentity(st *store.Store, log *logger.Logger) *Identity {
	if log == nil {
		log = logger.Nop()
	}
	return &Identity{store: st, log: log.With("component", "identity")}
}

// IsOnboarded reports whether a profile exists, without a secret.
func (i *Identity) IsOnboarded() bool {
	return i.store.Exists(engine.KeyUser)
}

func (i *Identity) salt() ([]byte, bool) {
	v, ok := i.store.GetPlain(engine.KeySalt)
	if !ok {
		return nil, false
	}
	salt, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, false
	}
	return salt, true
}

// Onboard creates the profile and returns the derived record key.
func (i *Identity) Onboard(name, pin string) ([]byte, models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.UserProfile{}, ErrNameRequired
	}
	if err := ValidatePIN(pin); err != nil {
		return nil, models.UserProfile{}, err
	}

	var key []byte
	var profile models.UserProfile
	err := i.store.Atomic(func() error {
		if i.IsOnboarded() {
			return ErrAlreadyOnboarded
		}
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return err
		}
		i.store.SetPlain(engine.KeySalt, base64.StdEncoding.EncodeToString(salt))
		key = crypto.DeriveKey(pin, salt)

		profile = models.UserProfile{
			Name:   name,
			HasPin: true,
			Level:  engine.LevelTitle(1),
			Streak: 1,
		}
		sess := i.store.Unlock(key)
		sess.Set(engine.KeyUser, profile)
		sess.Set(engine.KeyWeek, 1)
		return nil
	})
	if err != nil {
		return nil, models.UserProfile{}, err
	}
	i.log.Info("profile created")
	return key, profile, nil
}

// Login derives the key from pin and proves it by decrypting the profile.
// A wrong PIN and a corrupt profile both yield ErrInvalidPIN.
func (i *Identity) Login(pin string) ([]byte, models.UserProfile, error) {
	if !i.IsOnboarded() {
		return nil, models.UserProfile{}, ErrNotOnboarded
	}
	salt, ok := i.salt()
	if !ok {
		// Profiles created without a stored salt cannot be unlocked.
		return nil, models.UserProfile{}, ErrInvalidPIN
	}
	if ValidatePIN(pin) != nil {
		return nil, models.UserProfile{}, ErrInvalidPIN
	}

	key := crypto.DeriveKey(pin, salt)
	profile, ok := store.Load[models.UserProfile](i.store, engine.KeyUser, key)
	if !ok {
		i.log.Warn("login rejected")
		return nil, models.UserProfile{}, ErrInvalidPIN
	}
	week := store.LoadOr(i.store.Unlock(key), engine.KeyWeek, 1)
	profile.Level = engine.LevelTitle(week)
	return key, profile, nil
}

// ClearData wipes every record, the salt included.
func (i *Identity) ClearData() {
	_ = i.store.Atomic(func() error {
		i.store.Clear()
		return nil
	})
	i.log.Warn("all data cleared")
}
