package index

import (
	"errors"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
)

// Open builds the engine with the documented fallback chain: a
// persistent store at dir, then an in-memory index, then the no-op
// engine. Open never fails; a degraded engine is logged and returned.
func Open(dir string, logger *slog.Logger) Engine {
	m, err := buildMapping()
	if err != nil {
		if logger != nil {
			logger.Error("index mapping failed, using noop engine", "err", err)
		}
		return NoopEngine{}
	}

	if dir != "" {
		idx, err := bleve.Open(dir)
		if err != nil && errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(dir, m)
		}
		if err == nil {
			if logger != nil {
				logger.Info("index opened", "engine", "bleve", "dir", dir)
			}
			return newBleveEngine("bleve", idx)
		}
		if logger != nil {
			logger.Warn("persistent index unavailable, falling back", "dir", dir, "err", err)
		}
	}

	idx, err := bleve.NewMemOnly(m)
	if err == nil {
		if logger != nil {
			logger.Info("index opened", "engine", "bleve-mem")
		}
		return newBleveEngine("bleve-mem", idx)
	}
	if logger != nil {
		logger.Error("in-memory index unavailable, using noop engine", "err", err)
	}
	return NoopEngine{}
}

// OpenMemory returns an in-memory engine or the no-op fallback; used
// by tests and ephemeral tooling.
func OpenMemory() Engine {
	m, err := buildMapping()
	if err != nil {
		return NoopEngine{}
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return NoopEngine{}
	}
	return newBleveEngine("bleve-mem", idx)
}
