// Package config loads backport configuration.
//
// Settings are layered: built-in defaults, an optional YAML file, then
// environment variables prefixed with BACKPORT_ (dots become underscores, so
// jira.baseURL is BACKPORT_JIRA_BASEURL). Credentials are read from the
// environment only and are never written out unmasked.
package config
