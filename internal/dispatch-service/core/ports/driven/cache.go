package driven

import (
	"context"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
)

// IIdentityCache shields the ingest path from a storage read per message.
type IIdentityCache interface {
	Get(ctx context.Context, courierID string) (model.CourierIdentity, bool)
}
