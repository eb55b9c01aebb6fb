package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// persistedState is the on-disk layout of the emergency switch. It survives
// restarts so a halt ordered yesterday still binds today.
type persistedState struct {
	Halted   bool       `json:"halted"`
	HaltedAt *time.Time `json:"halted_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	SavedAt  time.Time  `json:"saved_at"`
}

type stateFile struct {
	path string
}

func newStateFile(path string) *stateFile {
	return &stateFile{path: path}
}

// load returns (state, found, error). A missing file is not an error.
func (f *stateFile) load() (persistedState, bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return persistedState{}, false, nil
	}
	if err != nil {
		return persistedState{}, false, err
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return persistedState{}, false, fmt.Errorf("corrupt safety state: %w", err)
	}
	return st, true, nil
}

// save writes atomically via a temp file in the same directory.
func (f *stateFile) save(st persistedState) error {
	st.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".safety-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.path)
}
