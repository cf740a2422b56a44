package ingest

// Pending returns the number of collected points not yet flushed.
func (e *Engine) Pending() int {
	return e.batch.Len()
}
