// Package config handles configuration loading for taskstream.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TASKSTREAM_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	chat:
//	  confirm_timeout: "30s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//
// Database:
//
//	database:
//	  path: "/var/lib/taskstream/taskstream.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${TASKSTREAM_JWT_SECRET}"
//
// Model provider defaults (overridable per user):
//
//	llm:
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//
// Turn orchestration:
//
//	chat:
//	  confirm_timeout: "30s"  # how long a card waits for the user
//	  context_turns: 10       # history window per request
//	  max_rounds: 10          # tool-call rounds per turn
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
