package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs fn in a goroutine. A panic is logged with its stack and
// swallowed so a failed background job never takes the server down.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				stack := string(buf[:runtime.Stack(buf, false)])

				if logger == nil {
					fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stack)
					return
				}
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stack).
					Msg("Recovered from panic in goroutine")
			}
		}()

		fn()
	}()
}
