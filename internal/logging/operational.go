package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewOperational returns a zap logger writing JSON lines to
// <dir>/netdiag.log. Level is a zap level name; empty means info.
func NewOperational(cfg Config, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	lvl := zap.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}

	name := cfg.ToolName
	if name == "" {
		name = "netdiag"
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name+".log"),
		MaxSize:    cfg.MaxMB,
		MaxBackups: cfg.MaxFiles,
		Compress:   true,
	})

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, lvl)

	fields := []zap.Field{zap.String("tool_version", cfg.ToolVersion)}
	if cfg.HostID != "" {
		fields = append(fields, zap.String("host_id", cfg.HostID))
	}
	return zap.New(core).With(fields...), nil
}
