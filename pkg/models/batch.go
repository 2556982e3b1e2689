package models

// ============================================================================
// Batch Results
// ============================================================================

// BatchError records a single failed chunk or item inside a batch run.
type BatchError struct {
	Chunk int    `json:"chunk"`
	Item  string `json:"item,omitempty"`
	Error string `json:"error"`
}

// BatchResult is the outcome of a chunked batch operation. A failing chunk
// is recorded here and the batch continues; the batch never aborts entirely.
type BatchResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Created   int          `json:"created,omitempty"`
	Skipped   int          `json:"skipped,omitempty"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// Merge folds another result into this one, offsetting nothing: chunk indexes
// are preserved as reported by the caller.
func (r *BatchResult) Merge(other BatchResult) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// RecordError marks a chunk as failed.
func (r *BatchResult) RecordError(chunk int, item string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, BatchError{Chunk: chunk, Item: item, Error: err.Error()})
}
