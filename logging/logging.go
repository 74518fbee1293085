// Package logging builds the process logger.
//
// Output always goes to stdout. When a log file is configured a rotating
// copy is written through lumberjack as well.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/warp/freight-engine/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg and a closer for the rotating file.
func New(cfg config.LoggingConfig) (*log.Logger, io.Closer) {
	if cfg.File == "" {
		return log.New(os.Stdout, "", log.LstdFlags), nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return log.New(io.MultiWriter(os.Stdout, rotator), "", log.LstdFlags), rotator
}

// Install makes logger's output the destination of the standard logger,
// so packages logging through log.Default() land in the same file.
func Install(logger *log.Logger) {
	log.SetOutput(logger.Writer())
	log.SetFlags(logger.Flags())
}
