// Package logging provides structured logging for the pi4j daemon.
//
// It wraps log/slog so every subsystem logs through one configured
// handler: JSON for production, text for development, with level
// filtering and service/version fields on every entry.
//
// # Configuration
//
// The logging section of config.yaml selects level (debug, info, warn,
// error), format (json, text) and output (stdout, stderr):
//
//	logging:
//	  level: info
//	  format: json
//	  output: stdout
//
// # Usage
//
// The daemon builds one Logger at startup and hands component-scoped
// children to each subsystem. The library packages (digital, registry,
// history, the plugins) declare their own minimal logging interfaces;
// *Logger satisfies all of them:
//
//	log := logging.New(cfg.Logging, version)
//	journal.SetLogger(log.Component("journal"))
//	mqttClient.SetLogger(log.Component("mqtt"))
//
// # Security
//
// Secrets must stay out of log output. When a value is needed for
// correlation, log a truncated prefix rather than the value itself:
//
//	log.Info("token accepted", "token_prefix", tok[:8])
package logging
