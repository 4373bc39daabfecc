// Package logging provides structured logging with per-module levels.
//
// Every module logger fans out to stdout (text or json), the systemd
// journal when one is reachable, and an in-memory history that the HTTP
// API serves at /api/logs.
//
// Initialize once at startup, then fetch loggers by module name:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"device": "debug",
//			"api":    "warn",
//		},
//	})
//
//	logger := logging.GetLogger("device")
//	logger.Debug("dqbuf", "index", 0, "blocking", true)
//
// Module loggers hold a slog.LevelVar, so SetLevels changes the level of
// loggers that were already handed out. The config watcher uses this to
// apply [logging] edits without a restart.
//
// Journal entries carry SYSLOG_IDENTIFIER=smartcam and one upper-cased
// field per attribute:
//
//	journalctl -t smartcam MODULE=device
//	journalctl -t smartcam -p err
package logging
