package webhook

import "time"

// HandlerOption is a functional option for configuring Handler.
type HandlerOption func(*Handler)

// WithDeduper skips messages whose id was already processed.
func WithDeduper(d Deduper) HandlerOption {
	return func(h *Handler) {
		h.dedup = d
	}
}

// WithMaxConcurrency bounds deliveries processed at the same time.
// Values below 1 are ignored.
func WithMaxConcurrency(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxConcurrency = int64(n)
		}
	}
}

// WithProcessingTimeout sets the per-message processing timeout.
func WithProcessingTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.processingTimeout = timeout
		}
	}
}
