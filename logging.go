package main

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logFile *lumberjack.Logger

func setupLogging(logDebug, logTrace bool, dataDir string) {

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:  true,
		DisableSorting: true,
	})

	if logDebug {
		log.SetLevel(log.DebugLevel)
	}

	if logTrace {
		log.SetLevel(log.TraceLevel)
	}

	// Rotated at 50MB, keeping the last 5
	logFile = &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "stakedash.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
	}

	// Write everything to log file too
	log.AddHook(&writer.Hook{
		Writer: logFile,
		LogLevels: []log.Level{
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
			log.WarnLevel,
			log.InfoLevel,
			log.DebugLevel,
		},
	})
}

func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
	}
}
