// Package configs provides embedded configuration templates for ragindex.
//
// Templates are embedded at build time using Go's //go:embed directive so
// they ship with every distribution (source builds and binary releases).
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/ragindex/config.yaml)
//  3. Directory config (.ragindex.yaml)
//  4. Environment variables (RAGINDEX_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration
// at ~/.config/ragindex/config.yaml: settings that apply to every
// collection on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// CollectionConfigTemplate is the template for per-directory configuration
// at <collection>/.ragindex.yaml: chunking geometry and service tuning for
// one collection.
//
//go:embed collection-config.example.yaml
var CollectionConfigTemplate string
