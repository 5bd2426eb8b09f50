package contxt

import (
	"context"
	"os"
	"time"
)

// NewContext bounds parent by timeout. With CONTEXT_TEST set the bound is
// dropped so a debugger can pause without tripping deadlines.
func NewContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if os.Getenv("CONTEXT_TEST") != "" || timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
