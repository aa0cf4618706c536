package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/rewindbitcoin/watchtower/internal/build"
)

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend.
//
// Until initLogRotator attaches a log file, loggers write to stdout only.
// initLogRotator should be called early during application startup,
// before other goroutines start logging.
var (
	logWriter = &build.LogWriter{}

	// backendLog is the logging backend used to create all subsystem
	// loggers. Its output goes to stdout, and also to the log file once
	// initLogRotator has run.
	backendLog = btclog.NewBackend(logWriter)

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	dmnLog  = build.NewSubLogger("DMN", backendLog.Logger)
	chclLog = build.NewSubLogger("CHCL", backendLog.Logger)
	storLog = build.NewSubLogger("STOR", backendLog.Logger)
	cmitLog = build.NewSubLogger("CMIT", backendLog.Logger)
	mntrLog = build.NewSubLogger("MNTR", backendLog.Logger)
	ntfyLog = build.NewSubLogger("NTFY", backendLog.Logger)
	spvrLog = build.NewSubLogger("SPVR", backendLog.Logger)
	httpLog = build.NewSubLogger("HTTP", backendLog.Logger)
)

// subsystemLoggers maps each subsystem identifier to its associated
// logger.
var subsystemLoggers = map[string]btclog.Logger{
	"DMN":  dmnLog,
	"CHCL": chclLog,
	"STOR": storLog,
	"CMIT": cmitLog,
	"MNTR": mntrLog,
	"NTFY": ntfyLog,
	"SPVR": spvrLog,
	"HTTP": httpLog,
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory. It must be called
// before the package-global log rotator variables are used.
func initLogRotator(logFile string, maxLogFileSize int, maxLogFiles int) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logWriter.RotatorPipe = pw
	logRotator = r
}

// setLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the
// passed level.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// BackendLog exposes the shared logging backend so other packages can
// derive additional loggers if needed.
func BackendLog() *btclog.Backend {
	return backendLog
}
