package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// slogLogger satisfies paho.Logger on top of a slog.Logger.
type slogLogger struct {
	log   *slog.Logger
	level slog.Level
}

func (l slogLogger) Println(v ...interface{}) {
	l.emit(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l slogLogger) Printf(format string, v ...interface{}) {
	l.emit(fmt.Sprintf(format, v...))
}

func (l slogLogger) emit(message string) {
	l.log.Log(context.Background(), l.level, message, "component", "paho")
}

// BridgeLogs routes Paho's package level loggers to log.
// Paho's debug output is very chatty, so it is only wired at debug level.
func BridgeLogs(log *slog.Logger) {
	paho.CRITICAL = slogLogger{log: log, level: slog.LevelError}
	paho.ERROR = slogLogger{log: log, level: slog.LevelError}
	paho.WARN = slogLogger{log: log, level: slog.LevelWarn}
	if log.Enabled(context.Background(), slog.LevelDebug) {
		paho.DEBUG = slogLogger{log: log, level: slog.LevelDebug}
	}
}
