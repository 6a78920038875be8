package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// CookieName is the name of the login cookie.
const CookieName = "session"

const (
	flashPrefix = "flash:"
	flashTTL    = 5 * time.Minute
)

// ErrNoSession is returned when the request carries no valid session.
var ErrNoSession = errors.New("no session")

// Store is the global session store instance.
var Store *session.Store

// Data represents the session data structure.
type Data struct {
	User    models.User
	IDToken string // OIDC id_token kept for the end-session redirect
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string // success, error or info
	Message string
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return Store.Storage.Set(sessionID, out, exp)
}

// Read reads the session data for the given session ID.
func (s *Data) Read(sessionID string) error {
	byteData, err := Store.Storage.Get(sessionID)
	if err != nil {
		return err
	}

	if len(byteData) == 0 {
		return ErrNoSession
	}

	return json.Unmarshal(byteData, s)
}

// Current returns the session of the request or ErrNoSession.
func Current(c *fiber.Ctx) (*Data, error) {
	sessionID := c.Cookies(CookieName)
	if sessionID == "" {
		return nil, ErrNoSession
	}

	data := new(Data)
	if err := data.Read(sessionID); err != nil {
		return nil, err
	}

	if data.User.ID == 0 {
		return nil, ErrNoSession
	}

	return data, nil
}

// UserID returns the id of the logged in user, or 0.
func UserID(c *fiber.Ctx) uint64 {
	data, err := Current(c)
	if err != nil {
		return 0
	}

	return data.User.ID
}

// Destroy removes the session and its pending flash.
func Destroy(sessionID string) error {
	if err := Store.Storage.Delete(flashPrefix + sessionID); err != nil {
		return err
	}

	return Store.Storage.Delete(sessionID)
}

// SetFlash stores a message for the next page rendered for this session.
func SetFlash(c *fiber.Ctx, kind, message string) {
	sessionID := c.Cookies(CookieName)
	if sessionID == "" {
		return
	}

	out, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}

	_ = Store.Storage.Set(flashPrefix+sessionID, out, flashTTL)
}

// PopFlash returns and clears the pending flash message, if any.
func PopFlash(c *fiber.Ctx) *Flash {
	sessionID := c.Cookies(CookieName)
	if sessionID == "" {
		return nil
	}

	raw, err := Store.Storage.Get(flashPrefix + sessionID)
	if err != nil || len(raw) == 0 {
		return nil
	}

	_ = Store.Storage.Delete(flashPrefix + sessionID)

	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}

	return &f
}

// Init initializes the session store with the provided storage backend.
func Init(storage fiber.Storage) {
	if storage == nil {
		panic("storage is nil")
	}

	Store = session.New(session.Config{
		Storage: storage,
	})
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	b := make([]byte, 32) //nolint:mnd
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
