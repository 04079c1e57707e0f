package transit511

import (
	"context"
	"fmt"

	"github.com/Seabmoby/transit511/siri"
)

// Fetcher performs one network round trip for a resource key.
//
// Implementations must complete or fail within a bounded timeout and must
// not retry internally — retry and backoff are the shared poller's
// responsibility. Failures should be [siri.Error] values so the poller can
// classify them; anything else is treated as a network failure.
type Fetcher interface {
	Fetch(ctx context.Context, key ResourceKey) (*siri.Delivery, error)
}

// clientFetcher adapts [siri.Client] to the [Fetcher] contract, routing by
// resource kind.
type clientFetcher struct {
	client *siri.Client
}

func (f clientFetcher) Fetch(ctx context.Context, key ResourceKey) (*siri.Delivery, error) {
	switch key.Kind {
	case KindStop:
		return f.client.StopMonitoring(ctx, key.Operator, key.Code)
	case KindVehicle:
		return f.client.VehicleMonitoring(ctx, key.Operator, key.Code)
	default:
		return nil, fmt.Errorf("fetch %s: unknown resource kind", key)
	}
}
