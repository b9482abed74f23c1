// Package logging builds the process logger from the server config.
package logging

import (
	"fmt"
	"os"

	"github.com/nidhogg/nuka-commands/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation limits used when the config leaves them at zero.
const (
	DefaultMaxSizeMB  = 128
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 16
)

// New returns a console logger at cfg.LogLevel. When cfg.LogFile is set,
// entries are also written as JSON to a rotating file.
func New(cfg config.ServerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var consoleEnc zapcore.EncoderConfig
	if level == zapcore.DebugLevel {
		consoleEnc = zap.NewDevelopmentEncoderConfig()
	} else {
		consoleEnc = zap.NewProductionEncoderConfig()
		consoleEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEnc.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stdout), level),
	}

	if cfg.LogFile != "" {
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEnc),
			zapcore.AddSync(RotatingFile(cfg.LogFile, cfg.Rotation)),
			level,
		))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

// RotatingFile returns a lumberjack writer for path with the configured
// limits, falling back to the defaults for unset values.
func RotatingFile(path string, r config.LogRotation) *lumberjack.Logger {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
	}
	if lj.MaxSize == 0 {
		lj.MaxSize = DefaultMaxSizeMB
	}
	if lj.MaxBackups == 0 {
		lj.MaxBackups = DefaultMaxBackups
	}
	if lj.MaxAge == 0 {
		lj.MaxAge = DefaultMaxAgeDays
	}
	return lj
}
