package host

import (
	"github.com/rs/zerolog"
)

// DebugInfo accompanies every message of the debug import.
type DebugInfo struct {
	GasRemaining uint64
}

// DebugHandler receives the messages a contract passes to the debug import.
type DebugHandler func(msg string, info DebugInfo)

// LogDebugHandler forwards contract debug messages to logger.
func LogDebugHandler(logger zerolog.Logger) DebugHandler {
	return func(msg string, info DebugInfo) {
		logger.Debug().Uint64("gas_remaining", info.GasRemaining).Msg(msg)
	}
}
