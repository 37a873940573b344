package logging

import (
	"log/slog"
	"os"

	"gorm.io/gorm"
)

// Setup initializes the global slog logger with JSON output to stdout. With a
// database, ERROR+ records are also persisted to system_logs; the returned
// handler must be stopped on shutdown.
func Setup(db *gorm.DB) *PGHandler {
	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	if db == nil {
		slog.SetDefault(slog.New(stdout))
		return nil
	}
	pg := NewPGHandler(db)
	slog.SetDefault(slog.New(NewMultiHandler(stdout, pg)))
	return pg
}
