package batch

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Manifest lists the outcome of a batch run.
type Manifest struct {
	Models   int      `json:"models"`
	Rendered int      `json:"rendered"`
	Failed   int      `json:"failed"`
	Results  []Result `json:"results"`
}

// NewManifest summarizes results.
func NewManifest(results []Result) Manifest {
	m := Manifest{Models: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			m.Rendered++
		} else {
			m.Failed++
		}
	}
	return m
}

// WriteManifest writes the manifest of results to path as indented JSON.
func WriteManifest(path string, results []Result) error {
	data, err := json.MarshalIndent(NewManifest(results), "", "  ")
	if err != nil {
		return errors.Wrap(err, "batch: encode manifest")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "batch: write %s", path)
}
