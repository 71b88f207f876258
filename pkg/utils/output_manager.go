package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// OutputFile describes one file exported for a run
type OutputFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

// OutputManager lays out exported files as <base>/<run_id>/<file>
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// RunDir is the directory holding a run's exports
func (om *OutputManager) RunDir(runID string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(runID))
}

// GetOutputFilePath creates the run directory and returns the path for
// fileName inside it. Any directory part of fileName is dropped.
func (om *OutputManager) GetOutputFilePath(runID, fileName string) (string, error) {
	runDir := om.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return filepath.Join(runDir, filepath.Base(fileName)), nil
}

// GetDownloadURL is the API path serving a run's CSV
func (om *OutputManager) GetDownloadURL(runID string) string {
	return fmt.Sprintf("/api/v1/runs/%s/csv", runID)
}

// ListRunFiles returns the files exported for a run sorted by name. A run
// without exports has none.
func (om *OutputManager) ListRunFiles(runID string) ([]OutputFile, error) {
	entries, err := os.ReadDir(om.RunDir(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return []OutputFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := make([]OutputFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, OutputFile{
			Name: entry.Name(),
			Type: GetFileType(entry.Name()),
			Size: info.Size(),
			Path: filepath.Join(om.RunDir(runID), entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// GetFileType determines the file type based on extension
func GetFileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".gz":
		return "gzip"
	case ".txt", ".tsv":
		return "text"
	default:
		return "unknown"
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}
