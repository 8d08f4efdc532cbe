package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/recovery"
	"github.com/bitgo/utxocore/wallet"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter writes to standard error and, once initLogRotator has run, to
// the rotating log file.
type logWriter struct {
	rotatorPipe *io.PipeWriter
}

func (w *logWriter) Write(p []byte) (int, error) {
	_, _ = os.Stderr.Write(p)
	if w.rotatorPipe != nil {
		_, _ = w.rotatorPipe.Write(p)
	}

	return len(p), nil
}

var (
	writer = &logWriter{}

	// backendLog is the backend all subsystem loggers write to.
	backendLog = btclog.NewBackend(writer)

	// logRotator is closed on shutdown.
	logRotator *rotator.Rotator

	utxrLog = backendLog.Logger("UTXR")
	msigLog = backendLog.Logger("MSIG")
	wlltLog = backendLog.Logger("WLLT")
	rcvrLog = backendLog.Logger("RCVR")
	explLog = backendLog.Logger("EXPL")
	netpLog = backendLog.Logger("NETP")
	kchnLog = backendLog.Logger("KCHN")
)

func init() {
	multisig.UseLogger(msigLog)
	wallet.UseLogger(wlltLog)
	recovery.UseLogger(rcvrLog)
	explorer.UseLogger(explLog)
	netparams.UseLogger(netpLog)
	keychain.UseLogger(kchnLog)
}

// subsystemLoggers maps each subsystem identifier to its logger.
var subsystemLoggers = map[string]btclog.Logger{
	"UTXR": utxrLog,
	"MSIG": msigLog,
	"WLLT": wlltLog,
	"RCVR": rcvrLog,
	"EXPL": explLog,
	"NETP": netpLog,
	"KCHN": kchnLog,
}

// initLogRotator starts writing logs to logFile, rolling it over into the
// same directory.
func initLogRotator(logFile string, maxSizeKB, maxFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r, err := rotator.New(logFile, int64(maxSizeKB), false, maxFiles)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		if err := r.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
		}
	}()

	writer.rotatorPipe = pw
	logRotator = r

	return nil
}

// supportedSubsystems returns the sorted subsystem identifiers.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for id := range subsystemLoggers {
		subsystems = append(subsystems, id)
	}
	sort.Strings(subsystems)

	return subsystems
}

// validLogLevel reports whether level names a btclog level.
func validLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}

func setLogLevel(subsystemID, level string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	lvl, _ := btclog.LevelFromString(level)
	logger.SetLevel(lvl)
}

func setLogLevels(level string) {
	for id := range subsystemLoggers {
		setLogLevel(id, level)
	}
}

// parseAndSetDebugLevels applies a level spec of the form `level` or
// `level,SUBSYS=level,...`.
func parseAndSetDebugLevels(spec string) error {
	levels := strings.Split(spec, ",")

	global := levels[0]
	if !strings.Contains(global, "=") {
		if !validLogLevel(global) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", global)
		}
		setLogLevels(global)
		levels = levels[1:]
	}

	for _, pair := range levels {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level has an "+
				"invalid format [%v] -- use format "+
				"subsystem1=level1,subsystem2=level2", pair)
		}

		id, level := fields[0], fields[1]
		if _, ok := subsystemLoggers[id]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems are %v", id,
				supportedSubsystems())
		}

		if !validLogLevel(level) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", level)
		}

		setLogLevel(id, level)
	}

	return nil
}
