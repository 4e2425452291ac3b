// Package config resolves solarops settings from defaults, a TOML file, the
// environment and command-line flags.
//
// # Resolution Order
//
// Later sources win:
//
//  1. Built-in defaults
//  2. The TOML file (an explicit path, else ~/.config/solarops/config.toml)
//  3. SOLAROPS_* environment variables (SOLAROPS_API_URL -> api_url)
//  4. Flags the user actually set (--api-url -> api_url)
//
// A missing config file is not an error. A file that exists but is not valid
// TOML is reported as "parse config".
//
// # Default Values
//
//   - api_url: http://127.0.0.1:8080
//   - session_path: ~/.config/solarops/session.toml
//   - page_size: 10
//   - request_timeout: none
//   - poll_interval: 30s
//   - log_level: warn, log_format: text
//   - output: table
//
// # TOML Format
//
//	api_url = "https://bpm.example.com"
//	session_path = "~/.config/solarops/session.toml"
//	page_size = 25
//	request_timeout = "20s"
//	poll_interval = "1m"
//	log_level = "debug"
//	output = "json"
//
// Every field is optional. Blank or non-positive values fall back to the
// defaults and session_path gets tilde expansion.
//
// # Implementation
//
// Layering uses koanf; tomlParser adapts go-toml/v2 to koanf.Parser.
// Durations are decoded from strings such as "45s" by koanf's decode hooks.
package config
