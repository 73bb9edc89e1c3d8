package record

import (
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/tomopipe/tomopipe/internal/model"
	yamlutil "github.com/tomopipe/tomopipe/internal/yaml"
)

// Store loads and persists completion record documents under a working
// directory. One document exists per (project, stage) pair.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the record document location for a (project, stage) pair.
func (s *Store) Path(project string, stage model.Stage) string {
	return filepath.Join(s.dir, stage.RecordFile(project))
}

// Load reads the record for a (project, stage) pair. A missing document is
// the first-run case and yields an empty record, not an error. A document
// that exists but fails to parse aborts the run with CorruptRecordError
// rather than silently discarding history. Exact-duplicate rows are
// collapsed immediately after load.
func (s *Store) Load(project string, stage model.Stage) (*Record, error) {
	path := s.Path(project, stage)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Record{}, nil
		}
		return nil, &model.CorruptRecordError{Path: path, Err: err}
	}

	var rec Record
	if err := yamlv3.Unmarshal(data, &rec); err != nil {
		return nil, &model.CorruptRecordError{Path: path, Err: err}
	}
	rec.Dedupe()
	return &rec, nil
}

// Save overwrites the full record document atomically. It must be called
// after every successfully completed item, not only at the end of the run:
// an interruption then costs at most one item's work.
func (s *Store) Save(rec *Record, project string, stage model.Stage) error {
	return yamlutil.AtomicWrite(s.Path(project, stage), rec)
}
