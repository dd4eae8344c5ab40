package derive

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the logger derivation reports to. It is a no-op logger
// until SetLogger is called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the derive package's logger. Nil restores the no-op.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
