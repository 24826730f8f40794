// Package config loads solodeploy configuration.
//
// Configuration is layered with koanf: the embedded defaults.toml, then the
// project file (solodeploy.toml, .solodeploy.toml or a YAML variant), then
// SOLODEPLOY_ environment variables. A .env file next to the project file is
// read first so secrets can stay out of version control.
package config
