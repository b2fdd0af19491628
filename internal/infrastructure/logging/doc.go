// Package logging provides the monitor's structured logger.
//
// Logger embeds *slog.Logger, so components that accept a small
// Debug/Info/Warn/Error interface take it directly. Entries carry service
// and version attributes. Values of password, token and secret attributes
// are replaced before output.
//
// Output is stdout, stderr, a lumberjack-rotated file, or both console and
// file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "both"     # stdout, stderr, file, both
//	  file:
//	    path: "/var/log/mosquitto-monitor/monitor.log"
//	    max_size: 100    # megabytes
//	    max_backups: 4
//
// The process-wide logger owns the file; call Close on shutdown.
package logging
