package link

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
)

// AuthorityStore holds the authority scores used at query time, keyed
// by document URL. Rank computation writes domain-level entries that
// back any URL without a score of its own. Reads vastly outnumber
// writes; a plain mutex is enough.
type AuthorityStore struct {
	mu     sync.RWMutex
	scores map[string]float64
}

func NewAuthorityStore() *AuthorityStore {
	return &AuthorityStore{scores: map[string]float64{}}
}

// Authority returns the score for key, normally a document URL. An
// exact entry wins; an overlay URL without one falls back to its
// domain's entry. Unknown keys score zero.
func (s *AuthorityStore) Authority(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.scores[key]; ok {
		return v
	}
	if domain := LinkDomain(key); domain != "" {
		return s.scores[domain]
	}
	return 0
}

// Replace swaps in a freshly computed score set.
func (s *AuthorityStore) Replace(scores map[string]float64) {
	cp := make(map[string]float64, len(scores))
	for k, v := range scores {
		cp[k] = v
	}
	s.mu.Lock()
	s.scores = cp
	s.mu.Unlock()
}

// Len reports the number of scored domains.
func (s *AuthorityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scores)
}

// ToJSON serializes the scores with keys sorted and values rounded to
// six decimals, so successive snapshots of the same graph are
// byte-identical and diff cleanly.
func (s *AuthorityStore) ToJSON() ([]byte, error) {
	s.mu.RLock()
	rounded := make(map[string]float64, len(s.scores))
	for k, v := range s.scores {
		rounded[k] = math.Round(v*1e6) / 1e6
	}
	s.mu.RUnlock()
	return json.MarshalIndent(rounded, "", "  ")
}

// FromJSON replaces the scores with a previously serialized snapshot.
func (s *AuthorityStore) FromJSON(data []byte) error {
	var scores map[string]float64
	if err := json.Unmarshal(data, &scores); err != nil {
		return fmt.Errorf("decode authority snapshot: %w", err)
	}
	s.Replace(scores)
	return nil
}

// SaveSnapshot writes the scores to path.
func (s *AuthorityStore) SaveSnapshot(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write authority snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads scores from path. A missing file is not an
// error; the store simply starts empty.
func (s *AuthorityStore) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read authority snapshot: %w", err)
	}
	return s.FromJSON(data)
}

// CombineAuthority blends the PageRank score with a trust prior.
// alpha weighs the graph signal, the remainder goes to trust.
func CombineAuthority(pagerank, trust, alpha float64) float64 {
	return alpha*pagerank + (1-alpha)*trust
}
