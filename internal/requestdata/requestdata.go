// Package requestdata carries per-request caller facts through context. The
// signing flow folds these into the evidence bundle, so middleware must
// populate them before any signing handler runs.
package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

var requestDataKey ctxKey

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}

type RequestData struct {
	RequestID string
	ActorID   uuid.UUID
	IP        string
	UserAgent string

	// DeviceID is the client-reported stable device identifier, empty when
	// the client does not send one.
	DeviceID string
	// ApproxLocation is a coarse city-level hint (header or geo lookup),
	// never precise coordinates.
	ApproxLocation string
}
