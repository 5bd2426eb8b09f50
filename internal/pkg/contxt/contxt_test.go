package contxt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewContext(t *testing.T) {
	tests := map[string]struct {
		env         string
		timeout     time.Duration
		hasDeadline bool
	}{
		"bounded":     {timeout: time.Minute, hasDeadline: true},
		"no timeout":  {timeout: 0},
		"test switch": {env: "1", timeout: time.Minute},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONTEXT_TEST", tt.env)
			ctx, cancel := NewContext(context.Background(), tt.timeout)
			_, ok := ctx.Deadline()
			assert.Equal(t, tt.hasDeadline, ok)

			cancel()
			assert.ErrorIs(t, ctx.Err(), context.Canceled)
		})
	}
}
