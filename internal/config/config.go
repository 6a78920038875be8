// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvJSONOverride names the environment variable holding a JSON document merged over main.toml.
const EnvJSONOverride = "RRDM_CONFIG_JSON"

const (
	defaultShutDownTime      = 5
	defaultSessionExpiry     = 8 * time.Hour
	defaultAPIRateLimit      = 100
	defaultAPIRateWindow     = time.Minute
	defaultLoginRateLimit    = 10
	defaultLoginRateWindow   = 15 * time.Minute
	defaultStatusInterval    = time.Hour
	defaultCounterCacheTTL   = time.Minute
	defaultTrelloHTTPTimeout = 10 * time.Second
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)

	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigFile(path + "main.toml")
	v.SetConfigType("toml")

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	// override it from env
	if JSONConfigEnv := os.Getenv(EnvJSONOverride); JSONConfigEnv != "" {
		if c, err = decodeAndMergeConfig(c, JSONConfigEnv); err != nil {
			return c, err
		}
	}

	if err = validate(&c); err != nil {
		return c, err
	}

	return c, nil
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	if err := json.Unmarshal([]byte(configAsJSON), &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode "+EnvJSONOverride)
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer

	if err := toml.NewEncoder(&buffer).Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer

	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the settings the service cannot start without and fills in defaults.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.DB.GormEngine == "" {
		c.DB.GormEngine = EngineSQLite
	}

	if err := validator.New().Struct(c.DB); err != nil {
		return errors.Wrap(ErrUnsupportedDBEngine, err.Error())
	}

	if c.Auth.LDAP.Enabled && c.Auth.LDAP.Host == "" {
		return errors.Wrap(ErrLDAPHostMissing, invalidErrMessage)
	}

	if c.Auth.OIDC.Enabled && (c.Auth.OIDC.ProviderURL == "" || c.Auth.OIDC.ClientID == "") {
		return errors.Wrap(ErrOIDCProviderMissing, invalidErrMessage)
	}

	if c.Trello.Enabled && (c.Trello.Key == "" || c.Trello.Token == "" || c.Trello.ListID == "") {
		return errors.Wrap(ErrTrelloCredentialsMissing, invalidErrMessage)
	}

	applyDefaults(c)

	return nil
}

func applyDefaults(c *Config) {
	ws := &c.Webserver

	if ws.ShutDownTime == 0 {
		ws.ShutDownTime = defaultShutDownTime
	}

	if ws.Session.ExpiryTime == 0 {
		ws.Session.ExpiryTime = defaultSessionExpiry
	}

	if ws.RateLimit.APIMax == 0 {
		ws.RateLimit.APIMax = defaultAPIRateLimit
	}

	if ws.RateLimit.APIWindow == 0 {
		ws.RateLimit.APIWindow = defaultAPIRateWindow
	}

	if ws.RateLimit.LoginMax == 0 {
		ws.RateLimit.LoginMax = defaultLoginRateLimit
	}

	if ws.RateLimit.LoginWindow == 0 {
		ws.RateLimit.LoginWindow = defaultLoginRateWindow
	}

	if c.Workflow.StatusUpdateInterval == 0 {
		c.Workflow.StatusUpdateInterval = defaultStatusInterval
	}

	if c.Workflow.CounterCacheTTL == 0 {
		c.Workflow.CounterCacheTTL = defaultCounterCacheTTL
	}

	if c.Trello.Timeout == 0 {
		c.Trello.Timeout = defaultTrelloHTTPTimeout
	}

	if c.Title == "" {
		c.Title = "Reference Data Management"
	}
}
