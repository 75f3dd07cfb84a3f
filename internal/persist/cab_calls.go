// Package persist implements the single-file cab-call store of spec.md
// §6.5/§9: written only by the FSM thread on every cab-vector change, read
// once at FSM startup. A single writer needs no locking protocol.
package persist

import (
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

type cabCallsFile struct {
	CabCalls []bool `toml:"cab_calls"`
}

// CabCalls persists the cab-request vector across process restarts.
type CabCalls struct {
	mu   sync.Mutex
	path string
}

// NewCabCalls returns a store backed by the file at path.
func NewCabCalls(path string) *CabCalls {
	return &CabCalls{path: path}
}

// Load reads the persisted vector. A missing file or a stored vector of
// the wrong length (a floor-count change since the last run) yields a
// fresh all-false vector rather than an error — spec.md §3 requires
// cab_requests.length == N at all times, and there is no sensible way to
// remap old floor indices to a new count.
func (c *CabCalls) Load(floorCount int) ([]bool, error) {
	var f cabCallsFile
	if _, err := toml.DecodeFile(c.path, &f); err != nil {
		if os.IsNotExist(err) {
			return make([]bool, floorCount), nil
		}
		return nil, domain.NewValidationError("failed to decode cab calls file", err).
			WithContext("path", c.path)
	}
	if len(f.CabCalls) != floorCount {
		return make([]bool, floorCount), nil
	}
	return f.CabCalls, nil
}

// Save overwrites the file with cabCalls. Called on every cab-vector
// change per spec.md §4.1.2.
func (c *CabCalls) Save(cabCalls []bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Create(c.path)
	if err != nil {
		return domain.NewValidationError("failed to open cab calls file for writing", err).
			WithContext("path", c.path)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cabCallsFile{CabCalls: cabCalls}); err != nil {
		return domain.NewValidationError("failed to encode cab calls file", err).
			WithContext("path", c.path)
	}
	return nil
}
