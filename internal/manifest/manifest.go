package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/healthlens-cli/internal/utils"
)

// FileName is the manifest written into the results directory.
const FileName = "manifest.json"

// Dataset outcomes.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Manifest records what one pipeline run loaded, produced and skipped.
type Manifest struct {
	RunID      string                    `json:"run_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at,omitempty"`
	DataDir    string                    `json:"data_dir"`
	ResultsDir string                    `json:"results_dir"`
	Datasets   map[string]*DatasetRecord `json:"datasets"`
	Outputs    []string                  `json:"outputs,omitempty"`

	dir string // directory holding manifest.json
}

// Shape is a table size.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// DatasetRecord is the outcome for one dataset.
type DatasetRecord struct {
	Source    string   `json:"source"`
	Status    string   `json:"status"`
	Raw       Shape    `json:"raw"`
	Processed Shape    `json:"processed"`
	Outputs   []string `json:"outputs,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// New starts a manifest for a run writing into resultsDir.
func New(dataDir, resultsDir string) *Manifest {
	return &Manifest{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		DataDir:    dataDir,
		ResultsDir: resultsDir,
		Datasets:   make(map[string]*DatasetRecord),
		dir:        resultsDir,
	}
}

// Load reads manifest.json from dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.dir = dir
	return &m, nil
}

// Dataset returns the record for key, creating it as skipped.
func (m *Manifest) Dataset(key, source string) *DatasetRecord {
	d := m.Datasets[key]
	if d == nil {
		d = &DatasetRecord{Source: source, Status: StatusSkipped}
		m.Datasets[key] = d
	}
	return d
}

// AddOutput registers a run-level output such as the workbook.
func (m *Manifest) AddOutput(path string) {
	m.Outputs = append(m.Outputs, path)
}

// Fail marks the dataset failed and records err.
func (d *DatasetRecord) Fail(err error) {
	d.Status = StatusFailed
	d.Errors = append(d.Errors, err.Error())
}

// Note records a non-fatal problem without changing the status.
func (d *DatasetRecord) Note(err error) {
	d.Errors = append(d.Errors, err.Error())
}

// Counts tallies datasets per status.
func (m *Manifest) Counts() map[string]int {
	out := map[string]int{}
	for _, d := range m.Datasets {
		out[d.Status]++
	}
	return out
}

// Keys returns the dataset keys in sorted order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Datasets))
	for k := range m.Datasets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Path is the manifest location on disk.
func (m *Manifest) Path() string { return filepath.Join(m.dir, FileName) }

// Finish stamps the finish time and writes manifest.json atomically.
func (m *Manifest) Finish() error {
	if m.dir == "" {
		return errors.New("manifest directory not set")
	}
	m.FinishedAt = time.Now().UTC()
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(m.Path(), data)
}
