package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
)

type ExportBranch struct {
	BranchSummary
	Points []dynamo.Point `json:"points"`
}

type ExportData struct {
	Run          RunMetadata         `json:"run"`
	Branches     []ExportBranch      `json:"branches"`
	Bifurcations []StoredBifurcation `json:"bifurcations"`
}

// Export gathers everything stored for a run.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	data := &ExportData{Run: *meta}
	for i, b := range meta.Branches {
		points, err := s.LoadBranch(runID, i)
		if err != nil {
			return nil, err
		}
		data.Branches = append(data.Branches, ExportBranch{BranchSummary: b, Points: points})
	}
	if data.Bifurcations, err = s.LoadBifurcations(runID); err != nil {
		return nil, err
	}
	return data, nil
}

// ExportJSON writes the run as one indented JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	data, err := s.Export(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(data), "encode export")
}

// ExportCSV copies one branch CSV to w.
func (s *Store) ExportCSV(w io.Writer, runID string, branch int) error {
	path, err := s.BranchFile(runID, branch)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
