// Package random generates cryptographically secure strings for temporary
// passwords and opaque tokens.
package random
