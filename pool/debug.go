//go:build debug

package pool

import (
	"fmt"
	"log"
	"os"
)

var debugLogger = log.New(os.Stderr, "[PKGITER POOL] ", log.Ltime|log.Lmicroseconds|log.Lshortfile)

// debugLog traces launch decisions of TaskPool.Run: thunks skipped after a
// failure and thunks that failed. Compiled in only with -tags debug.
func debugLog(format string, args ...any) {
	debugLogger.Output(2, fmt.Sprintf(format, args...))
}
