// Package configs embeds the configuration template written by
// `mailsearch config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (internal/config NewConfig)
//  2. User config (~/.config/mailsearch/config.yaml)
//  3. Directory config (.mailsearch.yaml)
//  4. .env in the config directory
//  5. Environment variables (MAILSEARCH_*)
package configs

import _ "embed"

// UserConfigTemplate is the commented default user configuration.
//
//go:embed mailsearch.example.yaml
var UserConfigTemplate string
