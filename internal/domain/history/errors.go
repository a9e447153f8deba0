package history

import "errors"

// Sentinel kinds for enrichment errors. Series precondition failures are
// reported with the model package's sentinels.
var (
	ErrInvalidWindow = errors.New("invalid window")
)
