package scan

import (
	"context"
	"errors"
	"time"
)

// ErrRadioUnavailable is returned by a Radio whose adapter is powered off or
// whose permission was denied. It surfaces at Start time, never as a silent
// empty scan.
var ErrRadioUnavailable = errors.New("bluetooth radio unavailable")

// Advertisement is one observation of a nearby BLE device. It lives only for
// the duration of the scan session that received it.
type Advertisement struct {
	ID     string
	Name   string
	RSSI   int
	SeenAt time.Time
}

// Radio is the platform Bluetooth capability. The engine never talks to
// hardware; it consumes whatever stream an injected Radio provides. The
// returned channel is closed when the radio stops delivering, either because
// Stop was called or the context was cancelled.
type Radio interface {
	Start(ctx context.Context) (<-chan Advertisement, error)
	Stop()
}
