package auth

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// ErrLDAPDisabled is returned when LDAP authentication is disabled via configuration.
var ErrLDAPDisabled = errors.New("ldap authentication is disabled")

// LDAPProvider handles LDAP authentication.
type LDAPProvider struct {
	config      config.LDAPAuth
	defaultRole string
	db          *gorm.DB
}

// NewLDAPProvider creates a new LDAP provider. Users seen for the first time
// are given defaultRole.
func NewLDAPProvider(cfg config.LDAPAuth, defaultRole string, db *gorm.DB) (*LDAPProvider, error) {
	if !cfg.Enabled {
		return nil, ErrLDAPDisabled
	}

	if cfg.UsernameAttr == "" {
		cfg.UsernameAttr = "uid"
	}

	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}

	if cfg.FirstNameAttr == "" {
		cfg.FirstNameAttr = "givenName"
	}

	if cfg.LastNameAttr == "" {
		cfg.LastNameAttr = "sn"
	}

	if cfg.UserFilter == "" {
		cfg.UserFilter = "(" + cfg.UsernameAttr + "={username})"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10
	}

	if defaultRole == "" {
		defaultRole = models.RoleViewer
	}

	return &LDAPProvider{
		config:      cfg,
		defaultRole: defaultRole,
		db:          db,
	}, nil
}

// Connect establishes a connection to the LDAP server.
func (p *LDAPProvider) Connect() (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port))

	ldapURL := "ldap://" + hostPort
	if p.config.UseSSL {
		ldapURL = "ldaps://" + hostPort
	}

	var tlsConfig *tls.Config
	if p.config.UseSSL || p.config.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: p.config.SkipVerify, //nolint:gosec // operator opt-in
			ServerName:         p.config.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if !p.config.UseSSL && p.config.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close LDAP connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	conn.SetTimeout(time.Duration(p.config.Timeout) * time.Second)

	return conn, nil
}

// Authenticate binds as the user and returns the matching local user record,
// creating it on first login.
func (p *LDAPProvider) Authenticate(username, password string) (*models.User, error) {
	if password == "" {
		// an empty password would be an unauthenticated bind
		return nil, ErrInvalidPassword
	}

	conn, err := p.Connect()
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if p.config.BindDN != "" {
		if errBind := conn.Bind(p.config.BindDN, p.config.BindPassword); errBind != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", errBind)
		}
	}

	entry, err := p.searchUserEntry(conn, username)
	if err != nil {
		return nil, err
	}

	if errBind := conn.Bind(entry.DN, password); errBind != nil {
		return nil, fmt.Errorf("authentication failed: %w", errBind)
	}

	return p.upsertUser(
		username,
		entry.DN,
		entry.GetAttributeValue(p.config.EmailAttr),
		entry.GetAttributeValue(p.config.FirstNameAttr),
		entry.GetAttributeValue(p.config.LastNameAttr),
	)
}

// searchUserEntry searches LDAP for the given username and returns a single entry.
func (p *LDAPProvider) searchUserEntry(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	filter := strings.ReplaceAll(p.config.UserFilter, "{username}", ldap.EscapeFilter(username))
	req := ldap.NewSearchRequest(
		p.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		p.config.Timeout,
		false,
		filter,
		[]string{
			p.config.UsernameAttr,
			p.config.EmailAttr,
			p.config.FirstNameAttr,
			p.config.LastNameAttr,
		},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for user: %w", err)
	}

	switch len(res.Entries) {
	case 0:
		return nil, ErrUserNotFound
	case 1:
		return res.Entries[0], nil
	default:
		return nil, ErrMultipleUsersFound
	}
}

// upsertUser creates or refreshes the local record for an LDAP account.
func (p *LDAPProvider) upsertUser(username, dn, email, firstName, lastName string) (*models.User, error) {
	return upsertExternalUser(p.db, models.AuthSourceLDAP, p.defaultRole, externalIdentity{
		ExternalID: dn,
		Username:   username,
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
	})
}

// TestConnection dials the server and binds with the service account.
func (p *LDAPProvider) TestConnection() error {
	conn, err := p.Connect()
	if err != nil {
		return err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if p.config.BindDN != "" {
		if err := conn.Bind(p.config.BindDN, p.config.BindPassword); err != nil {
			return fmt.Errorf("bind failed: %w", err)
		}
	}

	return nil
}
