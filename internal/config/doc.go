// Package config defines crawl configuration: CLI-driven defaults,
// named region presets, validation, and the optional YAML config file.
package config
