package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

// FileStore keeps one JSON artifact per sealed run in a flat directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first save, not here, so constructing a store never touches the disk.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the artifact directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns where the artifact for a run id lives.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes a sealed trace. The artifact is indented JSON so a run can be
// read with nothing but a pager.
func (s *FileStore) Save(trace *models.Trace) error {
	if trace == nil || trace.ID == "" {
		return fmt.Errorf("trace has no id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(s.Path(trace.ID), data, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// Load reads one sealed trace by id.
func (s *FileStore) Load(id string) (*models.Trace, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found in %s", id, s.dir)
		}
		return nil, fmt.Errorf("read trace: %w", err)
	}
	var t models.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", id, err)
	}
	return &t, nil
}

// List returns every stored run id, newest first. Ids sort lexically
// because they lead with a UTC timestamp.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

// Resolve expands an id prefix to the full run id, letting commands accept
// the short timestamp prefix a listing shows. Exact matches win; an
// ambiguous prefix is an error.
func (s *FileStore) Resolve(prefix string) (string, error) {
	ids, err := s.List()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("run %s not found in %s", prefix, s.dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run id %s is ambiguous (%d matches)", prefix, len(matches))
	}
}
