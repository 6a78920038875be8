package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrUnsupportedDBEngine error if DB.GormEngine is not postgres, mysql or sqlite.
	ErrUnsupportedDBEngine = errors.New("toml config db.gormengine must be postgres, mysql or sqlite")

	// ErrLDAPHostMissing error if LDAP is enabled without a host.
	ErrLDAPHostMissing = errors.New("toml config auth.ldap.host can not be empty when ldap is enabled")

	// ErrOIDCProviderMissing error if OIDC is enabled without provider url or client id.
	ErrOIDCProviderMissing = errors.New("toml config auth.oidc needs providerurl and clientid when enabled")

	// ErrTrelloCredentialsMissing error if Trello is enabled without key, token or list.
	ErrTrelloCredentialsMissing = errors.New("toml config trello needs key, token and listid when enabled")
)
