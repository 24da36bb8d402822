// Package config holds harvester's runtime configuration: engine defaults,
// validation, per-unit overrides read from a YAML file, and XDG paths.
package config
