package dto

// ProgressEventType names the SSE event emitted for each step of a
// streaming batch run.
type ProgressEventType string

const (
	ProgressEventStart         ProgressEventType = "start"
	ProgressEventProgress      ProgressEventType = "progress"
	ProgressEventBounceSummary ProgressEventType = "bounce_summary"
	ProgressEventComplete      ProgressEventType = "complete"
	ProgressEventError         ProgressEventType = "error"
)

// ProgressEvent is one entry in the per-recipient outcome stream of a batch
// run. Exactly one of the payload groups is populated depending on Type.
type ProgressEvent struct {
	Type ProgressEventType `json:"-"`

	// start
	Total int `json:"total,omitempty"`

	// progress
	RecipientID string `json:"recipientId,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`

	// bounce_summary
	BouncedCount int `json:"bouncedCount,omitempty"`

	// complete / error
	Message string `json:"message,omitempty"`
}

// ProgressSink receives progress events. Implementations must not block:
// the send loop keeps running and keeps mutating durable state whether or
// not anyone is listening.
type ProgressSink func(event ProgressEvent)

// ChunkResult reports the outcome of one bounded chunked-mode call.
type ChunkResult struct {
	Processed int   `json:"processed"`
	Success   int   `json:"success"`
	Failed    int   `json:"failed"`
	Remaining int64 `json:"remaining"`
}

// RecipientRecord is one parsed input row: a target address plus the
// free-form substitution variables captured from the row.
type RecipientRecord struct {
	Email     string                 `json:"email"`
	Variables map[string]interface{} `json:"variables"`
}
