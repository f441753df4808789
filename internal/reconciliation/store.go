package reconciliation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// SessionKey identifies a ledger by its sorted account list.
func SessionKey(rows []domain.LedgerRow) string {
	accounts := make([]string, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.Account)
	}
	sort.Strings(accounts)
	sum := sha256.Sum256([]byte(strings.Join(accounts, "|")))
	return hex.EncodeToString(sum[:])[:10]
}

// FileStore persists State as JSON files in Dir.
type FileStore struct {
	Dir string
}

// Path returns the state file for id.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.Dir, ".reconciliation_state_"+id+".json")
}

// Load reads the state for id. A missing file yields an empty State.
func (s *FileStore) Load(id string) (State, error) {
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	state := State{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("Load: decoding %s: %w", s.Path(id), err)
	}
	return state, nil
}

// Save writes state for id, creating Dir if needed.
func (s *FileStore) Save(id string, state State) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("Save: encoding state: %w", err)
	}
	if err := os.WriteFile(s.Path(id), data, 0o644); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}
