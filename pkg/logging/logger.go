// Package logging implements core.ILogger on top of zap, teed into the OTel
// log pipeline through the otelzap bridge.
package logging

import (
	"fmt"
	"os"
	"strings"

	"trade_engine/internal/core"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.Logger to core.ILogger. Fields are passed as
// alternating key/value pairs.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a console logger at the given level (DEBUG, INFO, WARN,
// ERROR, FATAL; anything else falls back to INFO) bridged to OTel logs.
func NewZapLogger(levelStr string) (*ZapLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		parseLevel(levelStr),
	)
	otelCore := otelzap.NewCore("trade_engine",
		otelzap.WithLoggerProvider(global.GetLoggerProvider()))

	return &ZapLogger{
		logger: zap.New(
			zapcore.NewTee(consoleCore, otelCore),
			zap.AddCaller(),
			zap.AddCallerSkip(1),
		),
	}, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	case "FATAL":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// pairFields turns alternating key/value arguments into zap fields. A trailing
// key without a value is dropped; non-string keys are stringified.
func pairFields(kvs []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvs[i])
		}
		fields = append(fields, zap.Any(key, kvs[i+1]))
	}
	return fields
}

func (l *ZapLogger) Debug(msg string, kvs ...interface{}) { l.logger.Debug(msg, pairFields(kvs)...) }
func (l *ZapLogger) Info(msg string, kvs ...interface{})  { l.logger.Info(msg, pairFields(kvs)...) }
func (l *ZapLogger) Warn(msg string, kvs ...interface{})  { l.logger.Warn(msg, pairFields(kvs)...) }
func (l *ZapLogger) Error(msg string, kvs ...interface{}) { l.logger.Error(msg, pairFields(kvs)...) }
func (l *ZapLogger) Fatal(msg string, kvs ...interface{}) { l.logger.Fatal(msg, pairFields(kvs)...) }

func (l *ZapLogger) WithField(key string, value interface{}) core.ILogger {
	return &ZapLogger{logger: l.logger.With(zap.Any(key, value))}
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) core.ILogger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &ZapLogger{logger: l.logger.With(zapFields...)}
}

// Sync flushes buffered entries. Call on shutdown.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
