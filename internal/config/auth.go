package config

import "os"

// Environment variables holding node credentials.
const (
	EnvAuthUser     = "SOLR_AUTH_USER"
	EnvAuthPassword = "SOLR_AUTH_PASSWORD"
)

// Auth is the HTTP Basic credential pair for node endpoints. The zero value
// means unauthenticated.
type Auth struct {
	Username string
	Password string
}

// Enabled reports whether both halves of the pair are present.
func (a Auth) Enabled() bool {
	return a.Username != "" && a.Password != ""
}

// String never includes the password.
func (a Auth) String() string {
	if !a.Enabled() {
		return "none"
	}
	return "basic(" + a.Username + ")"
}

// AuthFromEnv reads the credential pair through lookup (os.LookupEnv when
// nil). If either value is missing or empty, auth is disabled and the second
// return value is false.
func AuthFromEnv(lookup func(string) (string, bool)) (Auth, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	user, _ := lookup(EnvAuthUser)
	pass, _ := lookup(EnvAuthPassword)
	a := Auth{Username: user, Password: pass}
	if !a.Enabled() {
		return Auth{}, false
	}
	return a, true
}
