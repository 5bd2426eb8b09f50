package cmd

import (
	"context"
	"time"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

// DeviceClient is what run needs from the device transport.
type DeviceClient interface {
	ReadRealtime(ctx context.Context) (model.Payload, error)
	ReadSetData(ctx context.Context) (any, error)
	WriteRegisters(ctx context.Context, payload model.WritePayload) error
	// Deadline is how long one request may take including retries.
	Deadline() time.Duration
}

type cleaner interface {
	Cleanup(ctx context.Context) error
}
