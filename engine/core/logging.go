package core

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel maps a config string onto a LogLevel. Unknown values fall back to InfoLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) charm() log.Level {
	switch l {
	case DebugLevel:
		return log.DebugLevel
	case WarnLevel:
		return log.WarnLevel
	case ErrorLevel:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Purrfect 🐈 ",
				CallerOffset:    1,
			})
			l.SetLevel(log.DebugLevel)
			singleton = &logger{l}
		})
	return singleton
}

func SetLogLevel(level LogLevel) {
	getLogger().SetLevel(level.charm())
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
