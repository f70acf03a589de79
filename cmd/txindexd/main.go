// Command txindexd is a minimal demo binary: it opens a leveldb-backed
// transaction index for one wallet, wires up logging (wlog, rotated to
// disk via jrick/logrotate, following the btcsuite-family daemon
// convention), and prints every event the index emits. It exists to
// exercise the module end to end, not as a production wallet daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jrick/logrotate/rotator"
	"github.com/pkt-cash/txindex/kvstore"
	"github.com/pkt-cash/txindex/txindex"
	"github.com/pkt-cash/txindex/wlog"
)

var logRotator *rotator.Rotator

// logWriter outputs to both standard output and the write-end pipe of
// the initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	logRotator.Write(p)
	return len(p), nil
}

func initLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create log directory:", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create file rotator:", err)
		os.Exit(1)
	}
	logRotator = r
}

func main() {
	dbPath := flag.String("db", "txindex-data", "leveldb directory for the index")
	logPath := flag.String("logfile", "txindexd.log", "log file path")
	flag.Parse()

	initLogRotator(*logPath)
	defer logRotator.Close()

	logger := wlog.NewBackend(logWriter{}, "TXIX")
	txindex.UseLogger(logger)

	backend, err := kvstore.OpenLevelDB(*dbPath)
	if err != nil {
		logger.Criticalf("failed to open store: %v", err)
		os.Exit(1)
	}
	defer backend.Close()

	idx, err := txindex.New(txindex.Config{
		Backend:        backend,
		AddressHasher:  txindex.DefaultAddressHasher(&chaincfg.MainNetParams),
		ScriptVerifier: txindex.DefaultScriptVerifier(&chaincfg.MainNetParams),
		EventSink: func(ev txindex.Event) {
			logger.Infof("event: %s", ev.Kind)
		},
	})
	if err != nil {
		logger.Criticalf("failed to open index: %v", err)
		os.Exit(1)
	}
	defer idx.Close()

	logger.Infof("txindexd ready, store=%s", *dbPath)
	select {}
}
