// Package config provides 12-factor configuration management for wshub.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Registry: Service registry behavior (disposal on eviction)
//   - Wiring: Path of the static observer wiring file
//   - Properties: Layout rules applied when .properties documents are fixed
//
// The observer wiring file is read by LoadWiring. It names each observer,
// its kind, the lifecycle events it handles and, for warm-up observers, the
// services it constructs. YAML (.yaml, .yml) and TOML (.toml) are accepted:
//
//	observers:
//	  - name: workspace-audit
//	    kind: audit
//	    events: [opened, closed]
//	  - name: service-warmup
//	    kind: warmup
//	    events: [opened]
//	    services: [project]
//	  - name: service-eviction
//	    kind: eviction
//	    events: [closed]
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, RATE_LIMIT_GLOBAL
//   - REGISTRY_DISPOSE_ON_EVICT
//   - WIRING_FILE
//   - PROPERTIES_DELIMITER, PROPERTIES_SPACES_AROUND_DELIMITER,
//     PROPERTIES_ALIGN_GROUPS, PROPERTIES_KEEP_BLANK_LINES
package config
