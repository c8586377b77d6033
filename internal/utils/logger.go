package utils

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(cfg configs.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
