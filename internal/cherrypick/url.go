package cherrypick

import (
	"net/url"
)

// RepoURL returns the HTTPS clone URL of owner/name on host, authenticated with token
func RepoURL(host, token, fullName string) string {
	u := url.URL{Scheme: "https", Host: host, Path: "/" + fullName + ".git"}
	if token != "" {
		u.User = url.UserPassword("x-access-token", token)
	}
	return u.String()
}
