package index

// NoopEngine is the last-resort fallback: it accepts everything and
// finds nothing, so the query path keeps working when no real index
// could be opened.
type NoopEngine struct{}

func (NoopEngine) Name() string                           { return "noop" }
func (NoopEngine) Add(Doc) error                          { return nil }
func (NoopEngine) Commit() error                          { return nil }
func (NoopEngine) Refresh() error                         { return nil }
func (NoopEngine) Search([]string, int, int) ([]Hit, error) { return nil, nil }
func (NoopEngine) DocCount() (uint64, error)              { return 0, nil }
func (NoopEngine) Close() error                           { return nil }
