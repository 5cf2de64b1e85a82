package vision

import "errors"

// ErrQuotaExceeded indicates the provider throttled or rejected the call for quota reasons.
var ErrQuotaExceeded = errors.New("vision quota exceeded")

// ErrInvalidResponse indicates the provider answered without a required field.
var ErrInvalidResponse = errors.New("invalid vision response")
