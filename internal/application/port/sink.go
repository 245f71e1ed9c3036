package port

import "time"

// Sink is the console presentation binding.
type Sink interface {
	// Live line: overwrite the current line with the latest snapshot (no newline)
	WriteLive(line string) error
	// History line: timestamped snapshot, then an empty line for future live updates
	WriteSnapshot(ts time.Time, line string) error
	NewLine() error
}
