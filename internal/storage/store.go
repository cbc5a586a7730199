package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/experiment"
)

const (
	metadataFile    = "metadata.json"
	configFile      = "config.yaml"
	activationsFile = "activations.csv"
	poseFile        = "pose.csv"
	elementsFile    = "elements.csv"
	historyFile     = "history.csv"
)

// Store keeps one directory per solved problem under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Timestamp      time.Time          `json:"timestamp"`
	Layout         string             `json:"layout"`
	Target         string             `json:"target"`
	Elements       int                `json:"elements"`
	Stepsize       float64            `json:"stepsize"`
	Tolerance      float64            `json:"activation_diff_tolerance"`
	MaxIterNumber  int                `json:"max_iter_number"`
	Status         string             `json:"status"`
	Iterations     int                `json:"iterations"`
	ActivationDiff float64            `json:"activation_diff"`
	Muscles        []string           `json:"muscles"`
	Metrics        map[string]float64 `json:"metrics"`
}

// History records the activation change of every iteration.
type History struct {
	Diffs []float64
}

func (h *History) OnIteration(it control.Iteration) {
	h.Diffs = append(h.Diffs, it.ActivationDiff)
}

// Save writes the configuration, the final activations, the node pose, the
// element centres with their radius and dilatation, and the convergence history of a finished experiment. hist may be nil.
func (s *Store) Save(name string, exp *experiment.Experiment, result *control.Result, hist *History) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	cfg := exp.Config()
	muscles := make([]string, len(exp.Groups()))
	for i, g := range exp.Groups() {
		muscles[i] = g.Name()
	}
	meta := RunMetadata{
		ID:             runID,
		Name:           name,
		Timestamp:      time.Now(),
		Layout:         cfg.Muscles.Layout,
		Target:         cfg.Target.Kind,
		Elements:       cfg.Rod.NElements,
		Stepsize:       cfg.Algorithm.Stepsize,
		Tolerance:      cfg.Algorithm.ActivationDiffTolerance,
		MaxIterNumber:  cfg.Algorithm.MaxIterNumber,
		Status:         result.Status.String(),
		Iterations:     result.Iterations,
		ActivationDiff: result.ActivationDiff,
		Muscles:        muscles,
		Metrics:        result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	s0 := exp.Rod().ArcLength()
	header := append([]string{"element", "s"}, muscles...)
	rows := make([][]string, len(s0)-1)
	for k := range rows {
		row := []string{strconv.Itoa(k), formatFloat(0.5 * (s0[k] + s0[k+1]))}
		for _, a := range result.Activations {
			row = append(row, formatFloat(a[k]))
		}
		rows[k] = row
	}
	if err := writeCSV(filepath.Join(runDir, activationsFile), header, rows); err != nil {
		return "", err
	}

	pos := exp.Rod().Position
	rows = make([][]string, len(pos))
	for k, p := range pos {
		rows[k] = []string{strconv.Itoa(k), formatFloat(s0[k]), formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)}
	}
	if err := writeCSV(filepath.Join(runDir, poseFile), []string{"node", "s", "x", "y", "z"}, rows); err != nil {
		return "", err
	}

	r := exp.Rod()
	centres := r.ElementCentres()
	rows = make([][]string, len(centres))
	for k, c := range centres {
		rows[k] = []string{
			strconv.Itoa(k), formatFloat(0.5 * (s0[k] + s0[k+1])),
			formatFloat(c.X), formatFloat(c.Y), formatFloat(c.Z),
			formatFloat(r.Radius[k]), formatFloat(r.Dilatation[k]),
		}
	}
	if err := writeCSV(filepath.Join(runDir, elementsFile), []string{"element", "s", "x", "y", "z", "radius", "dilatation"}, rows); err != nil {
		return "", err
	}

	if hist == nil {
		return runID, nil
	}
	rows = make([][]string, len(hist.Diffs))
	for i, d := range hist.Diffs {
		rows[i] = []string{strconv.Itoa(i + 1), formatFloat(d)}
	}
	if err := writeCSV(filepath.Join(runDir, historyFile), []string{"iteration", "activation_diff"}, rows); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns the metadata of every stored run, oldest first.
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

// LoadActivations returns the element arc-length coordinates and one
// activation profile per muscle.
func (s *Store) LoadActivations(runID string) ([]float64, [][]float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, activationsFile))
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, [][]float64{}, nil
	}

	muscles := len(records[0]) - 2
	coords := make([]float64, 0, len(records)-1)
	activations := make([][]float64, muscles)
	for _, record := range records[1:] {
		if len(record) != muscles+2 {
			return nil, nil, errors.Errorf("run %s: malformed activation row %v", runID, record)
		}
		v, err := parseFloats(record[1:])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "run %s", runID)
		}
		coords = append(coords, v[0])
		for m := range activations {
			activations[m] = append(activations[m], v[m+1])
		}
	}
	return coords, activations, nil
}

func (s *Store) LoadHistory(runID string) ([]float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, historyFile))
	if err != nil {
		return nil, err
	}
	diffs := make([]float64, 0, len(records))
	for _, record := range records[1:] {
		if len(record) != 2 {
			continue
		}
		d, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "run %s", runID)
		}
		diffs = append(diffs, d)
	}
	return diffs, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s: empty file", path)
	}
	return records, nil
}
