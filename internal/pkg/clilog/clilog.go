// Package clilog configures logging for the operator CLI. Unlike the
// server, which logs structured JSON, the CLI writes human-readable
// output to the terminal and mirrors it into a rotated log file so that
// cron-driven aggregation runs leave a trail.
package clilog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"funneltrack/internal/config"
)

// New returns a logger writing to stderr and to a size-rotated file under
// the configured log directory. If the directory cannot be created the
// logger falls back to stderr only.
func New(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogsDirectory == "" {
		logger.SetOutput(os.Stderr)
		return logger
	}

	if err := os.MkdirAll(cfg.LogsDirectory, 0o755); err != nil {
		logger.SetOutput(os.Stderr)
		logger.WithError(err).Warn("Could not create log directory, logging to stderr only")
		return logger
	}

	fileOutput := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogsDirectory, "ftctl.log"),
		MaxSize:    cfg.LogsMaxSizeInMb,
		MaxBackups: cfg.LogsMaxBackups,
		MaxAge:     cfg.LogsMaxAgeInDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, fileOutput))
	return logger
}
