// Package auth provides authentication and authorization for the application.
//
// Users authenticate against one of three sources:
//   - LocalProvider checks an Argon2id hash stored in the users table
//   - LDAPProvider binds against LDAP or Active Directory
//   - OIDCProvider runs the OAuth2 code flow against an OpenID Connect provider
//
// LDAP and OIDC users are provisioned on first login with the configured
// default role.
//
// # Authorization
//
// Every user has exactly one role. A role carries a set of permissions named
// resource.action (bcr.write, refdata.read, admin.users, ...). The Service
// answers permission checks with a join over users, role_permissions and
// permissions, and treats inactive users as having no permissions.
//
// # Middleware
//
//   - RequirePermission: protect a route with a single permission
//   - RequireAnyPermission: protect a route with any of several permissions
//   - AddPermissionsToLocals: expose the user and its permissions to templates
//
// Example usage:
//
//	authService := auth.NewService(db)
//
//	app.Get("/admin/users",
//	    auth.RequirePermission(authService, auth.PermAdminUsers),
//	    handler,
//	)
package auth
