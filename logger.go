package sockgate

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	packageLogger atomic.Pointer[zap.Logger]
	nopLogger     = zap.NewNop()
)

// Logger returns the package logger used by gates that were not handed one
// via WithLogger. It is a no-op logger until SetLogger installs a real one.
func Logger() *zap.Logger {
	if l := packageLogger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger installs the package logger. Bring-up failures abort the process
// whether or not a logger is installed; installing one is how the diagnostic
// becomes visible.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	packageLogger.Store(l)
}
