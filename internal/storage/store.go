package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/config"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/dynamo"
)

const (
	metadataFile     = "metadata.json"
	bifurcationsFile = "bifurcations.json"
)

// ErrRunNotFound is returned when a run directory holds no metadata.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// BranchSummary describes one stored branch.
type BranchSummary struct {
	ID         string `json:"id"`
	Parent     string `json:"parent,omitempty"`
	Depth      int    `json:"depth"`
	File       string `json:"file"`
	Points     int    `json:"points"`
	Rejections int    `json:"rejections"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Problem      string             `json:"problem"`
	Timestamp    time.Time          `json:"timestamp"`
	Params       map[string]float64 `json:"params,omitempty"`
	Start        config.StartConfig `json:"start"`
	Stop         config.StopConfig  `json:"stop"`
	Continuation dynamo.Config      `json:"continuation"`
	Dim          int                `json:"dim"`
	Branches     []BranchSummary    `json:"branches"`
	Bifurcations int                `json:"bifurcations"`
	Error        string             `json:"error,omitempty"`
}

// StoredBifurcation is a bifurcation record tagged with its branch.
type StoredBifurcation struct {
	Branch string `json:"branch"`
	bifurcation.Record
}

// Save writes a traced tree under a new run directory: metadata.json, one
// CSV per branch and bifurcations.json. traceErr is the error returned by
// the trace, if any.
func (s *Store) Save(cfg *config.Config, tree *continuation.Tree, traceErr error) (string, error) {
	runID := fmt.Sprintf("%s_%s", cfg.Problem, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrap(err, "create run directory")
	}

	meta := RunMetadata{
		ID:           runID,
		Problem:      cfg.Problem,
		Timestamp:    time.Now(),
		Params:       cfg.Params,
		Start:        cfg.Start,
		Stop:         cfg.Stop,
		Continuation: cfg.Continuation,
		Bifurcations: tree.Bifurcations(),
	}
	if traceErr != nil {
		meta.Error = traceErr.Error()
	}

	files := make([]string, len(tree.Branches))
	errs := make([]error, len(tree.Branches))
	dynamo.ParallelFor(len(tree.Branches), 2, func(start, end int) {
		for i := start; i < end; i++ {
			files[i] = fmt.Sprintf("branch_%03d.csv", i)
			errs[i] = writeBranch(filepath.Join(runDir, files[i]), tree.Branches[i].Points)
		}
	})
	for i, err := range errs {
		if err != nil {
			return "", errors.Wrapf(err, "write branch %d", i)
		}
	}

	var bifs []StoredBifurcation
	for i, b := range tree.Branches {
		file := files[i]
		if meta.Dim == 0 && len(b.Points) > 0 {
			meta.Dim = b.Points[0].X.Dim()
		}
		meta.Branches = append(meta.Branches, BranchSummary{
			ID:         b.ID,
			Parent:     b.Parent,
			Depth:      b.Depth,
			File:       file,
			Points:     len(b.Points),
			Rejections: len(b.Rejections),
			Reason:     string(b.Reason),
			Error:      b.Error,
		})
		for _, r := range b.Bifurcations {
			bifs = append(bifs, StoredBifurcation{Branch: b.ID, Record: r})
		}
	}

	if err := writeJSON(filepath.Join(runDir, bifurcationsFile), bifs); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encode %s", filepath.Base(path))
	}
	return nil
}

func branchHeader(dim int) []string {
	header := []string{"arclength", "lambda", "norm"}
	for i := 0; i < dim; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	return append(header, "step", "iterations", "residual", "unstable")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 12, 64)
}

func writeBranch(path string, points []dynamo.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteCSV(f, points)
}

// WriteCSV writes points as CSV with a header row.
func WriteCSV(out io.Writer, points []dynamo.Point) error {
	w := csv.NewWriter(out)

	dim := 0
	if len(points) > 0 {
		dim = points[0].X.Dim()
	}
	if err := w.Write(branchHeader(dim)); err != nil {
		return err
	}

	for _, p := range points {
		row := []string{formatFloat(p.Arclength), formatFloat(p.Lambda()), formatFloat(p.Norm())}
		for _, v := range p.X.U() {
			row = append(row, formatFloat(v))
		}
		row = append(row,
			formatFloat(p.Step),
			strconv.Itoa(p.Iterations),
			formatFloat(p.Residual),
			strconv.Itoa(p.Unstable),
		)
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decode metadata of %s", runID)
	}
	return &meta, nil
}

func (s *Store) LoadBifurcations(runID string) ([]StoredBifurcation, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, bifurcationsFile))
	if err != nil {
		return nil, err
	}
	var bifs []StoredBifurcation
	if err := json.Unmarshal(data, &bifs); err != nil {
		return nil, errors.Wrapf(err, "decode bifurcations of %s", runID)
	}
	return bifs, nil
}

// BranchFile returns the path of a branch CSV.
func (s *Store) BranchFile(runID string, index int) (string, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(meta.Branches) {
		return "", errors.Errorf("run %s has %d branches, no branch %d", runID, len(meta.Branches), index)
	}
	return filepath.Join(s.baseDir, runID, meta.Branches[index].File), nil
}

// LoadBranch reads the points of a stored branch. Tangents and test
// values are not persisted.
func (s *Store) LoadBranch(runID string, index int) ([]dynamo.Point, error) {
	path, err := s.BranchFile(runID, index)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filepath.Base(path))
	}
	if len(records) < 2 {
		return []dynamo.Point{}, nil
	}

	dim := len(records[0]) - 7
	if dim < 0 {
		return nil, errors.Errorf("%s: malformed header", filepath.Base(path))
	}
	points := make([]dynamo.Point, 0, len(records)-1)
	for line, rec := range records[1:] {
		p, err := parsePoint(rec, dim)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d", filepath.Base(path), line+2)
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePoint(rec []string, dim int) (dynamo.Point, error) {
	vals := make([]float64, len(rec))
	for i, f := range rec {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return dynamo.Point{}, err
		}
		vals[i] = v
	}
	u := dynamo.State(vals[3 : 3+dim])
	tail := vals[3+dim:]
	return dynamo.Point{
		X:          dynamo.NewExtended(u, vals[1]),
		Arclength:  vals[0],
		Step:       tail[0],
		Iterations: int(tail[1]),
		Residual:   tail[2],
		Unstable:   int(tail[3]),
	}, nil
}
