// Package config loads secai configuration from local and global YAML files
// with precedence rules. It is internal; CLI code maps flags and files into
// client, export and session settings.
package config
