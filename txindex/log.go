package txindex

import "github.com/pkt-cash/txindex/wlog"

// log is this package's logger, disabled by default. Embedding
// applications call UseLogger to wire it to a real backend, matching
// the per-package log.go convention used throughout pktwallet.
var log wlog.Logger = wlog.Disabled

// UseLogger sets the logger used by this package.
func UseLogger(logger wlog.Logger) {
	log = logger
}
