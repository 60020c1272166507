// Package configs provides embedded configuration templates for sourcelens.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//   - Homebrew installations
//
// The templates are used by:
//   - cmd/sourcelens/cmd/init.go → creates sourcelens.toml
//   - cmd/sourcelens/cmd/config.go → creates user config at ~/.config/sourcelens/config.toml
//
// Template files:
//   - project-config.example.toml: Project-specific settings (paths, search, submodules)
//   - user-config.example.toml: Machine-specific settings (embedding provider, TEI endpoint)
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/sourcelens/config.toml)
//  3. Project config (sourcelens.toml)
//  4. Environment variables (SOURCELENS_*)
//
// To modify templates, edit the .toml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `sourcelens config init` at ~/.config/sourcelens/config.toml
// Contains: machine-specific settings like the embedding provider and TEI endpoint.
// Use case: settings that apply to all projects on this machine.
//
//go:embed user-config.example.toml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `sourcelens init` at sourcelens.toml in the project root.
// Contains: project-specific settings like paths.exclude, search weights, submodules.
// Use case: settings that are version-controlled with the project.
//
//go:embed project-config.example.toml
var ProjectConfigTemplate string
