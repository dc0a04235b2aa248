// Package config handles configuration loading for pollgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from POLLGATE_CONFIG environment variable
//  2. ./config.yaml (current directory)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  token: "${POLLGATE_BOT_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	telegram:
//	  timeout: "45s"
//	dedup:
//	  retention: "168h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings (mode is "longpoll" by default; the webhook fields are
// only required in "webhook" mode):
//
//	server:
//	  mode: "webhook"
//	  http_addr: "0.0.0.0:8080"
//	  webhook_secret: "${POLLGATE_WEBHOOK_SECRET}"
//	  public_url: "https://bot.example.com"
//
// Telegram Bot API:
//
//	telegram:
//	  token: "${POLLGATE_BOT_TOKEN}"
//	  proxy_url: "socks5://127.0.0.1:1080"  # optional
//	  pool_size: 10
//	  timeout: "45s"
//
// Database:
//
//	database:
//	  path: "/var/lib/pollgate/pollgate.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/pollgate/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
