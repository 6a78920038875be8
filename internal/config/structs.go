package config

import (
	"time"

	"github.com/dfe-rrdm/rrdm/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration // lifetime of the session cookie and the stored session
}

// RateLimit settings for the fiber limiter middleware.
type RateLimit struct {
	APIMax      int           // requests per window on /api
	APIWindow   time.Duration // window for APIMax
	LoginMax    int           // login attempts per window
	LoginWindow time.Duration // window for LoginMax
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	Title     string
	DB        DB
	Log       logger.Log
	Webserver Webserver
	Auth      Auth
	Trello    Trello
	Workflow  Workflow
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic bool      // enable static file browsing (for development purposes only)
	Port         int       // listening port for the webserver
	ShutDownTime int       // seconds to answer 503 on /health before shutting down
	URL          string    // base url for the webserver
	Session      Session   // session settings
	RateLimit    RateLimit // request limits
}

// Trello holds the credentials used to create a card when a BCR reaches the Trello phase.
type Trello struct {
	Enabled bool
	BaseURL string // defaults to https://api.trello.com/1
	Key     string
	Token   string
	ListID  string // list the cards are created in
	Timeout time.Duration
}

// Workflow tunes background work around BCRs and academic years.
type Workflow struct {
	StatusUpdateInterval time.Duration // how often academic year statuses are recomputed
	CounterCacheTTL      time.Duration // lifetime of cached dashboard counters
}
