// Package export writes matched reconciliation rows to durable artifacts.
package export

// Sink receives projected rows in order and persists them on Finalize. The
// first row appended is the heading row; concrete sinks decide how to
// render it.
type Sink interface {
	AppendRow(cells []string) error

	// Finalize writes the artifact to path. Calling it again without new
	// rows is a harmless re-save.
	Finalize(path string) error
}
