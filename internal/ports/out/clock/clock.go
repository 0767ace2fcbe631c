package clock

import "time"

// Clock provides the current time to token issuance and verification.
type Clock interface {
	Now() time.Time
}
