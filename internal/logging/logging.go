package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the encoder preset and an optional rotating log file.
type Config struct {
	Mode       string `yaml:"mode"` // production or development
	Level      string `yaml:"level"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// New builds the process logger. With a file enabled, JSON lines go to the
// rotating file and console lines to stdout.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Mode == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logger level: %w", err)
		}
		zc.Level = lvl
	}
	zc.OutputPaths = []string{"stdout"}

	if !cfg.FileEnable {
		return zc.Build(zap.AddCaller())
	}
	if cfg.Filename == "" {
		return nil, fmt.Errorf("logger filename is required when file output is enabled")
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    orDefault(cfg.MaxSizeMB, 64),
		MaxBackups: orDefault(cfg.MaxBackups, 7),
		MaxAge:     orDefault(cfg.MaxAgeDays, 7),
	}
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotator), zc.Level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(os.Stdout), zc.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
