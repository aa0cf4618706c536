package notify

import "errors"

// ErrDeliveryFailure marks a failed push attempt: non-2xx transport, or a
// 200 whose body reports data.status == "error". Bookkeeping is already
// persisted by the time this is returned, so the caller does not roll
// anything back; the next due cycle retries on the regular schedule.
var ErrDeliveryFailure = errors.New("notify: push delivery failed")
