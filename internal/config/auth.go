package config

// Auth bundles the login methods.
type Auth struct {
	LocalDB     LocalDBAuth
	LDAP        LDAPAuth
	OIDC        OIDCAuth
	DefaultRole string // role given to users provisioned by LDAP or OIDC
}

// LocalDBAuth enables username and password login against the users table.
type LocalDBAuth struct {
	Enabled bool
}

// LDAPAuth configures login against LDAP or Active Directory.
type LDAPAuth struct {
	Enabled       bool
	Host          string
	Port          int
	UseSSL        bool
	UseTLS        bool
	SkipVerify    bool
	BindDN        string
	BindPassword  string
	BaseDN        string
	UserFilter    string // e.g. (uid={username})
	UsernameAttr  string
	EmailAttr     string
	FirstNameAttr string
	LastNameAttr  string
	Timeout       int // seconds
}

// OIDCAuth configures login via an OpenID Connect provider such as DfE Sign-in.
type OIDCAuth struct {
	Enabled      bool
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	ButtonLabel  string
}
