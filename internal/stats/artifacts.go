package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"axonsim/internal/model"
)

const runIndexFile = "run_index.json"

type RunArtifacts struct {
	Record model.RunRecord
	Spikes []model.SpikeTrain
	Report *Report
}

type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	Circuit      string `json:"circuit"`
	Engine       string `json:"engine"`
	SpikeCount   int    `json:"spike_count"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// WriteRunArtifacts writes config.json, spikes.csv and, when present,
// report.json under baseDir/<run id>.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Record.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Record.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Record); err != nil {
		return "", err
	}
	if err := WriteSpikeCSV(filepath.Join(runDir, "spikes.csv"), artifacts.Spikes); err != nil {
		return "", err
	}
	if artifacts.Report != nil {
		if err := writeJSON(filepath.Join(runDir, "report.json"), artifacts.Report); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	// Equal timestamps keep the later append first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ExportRunArtifacts copies the artifacts of one run into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "spikes.csv"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	reportPath := filepath.Join(src, "report.json")
	if _, err := os.Stat(reportPath); err == nil {
		if err := copyFile(reportPath, filepath.Join(dst, "report.json")); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func ReadRunRecord(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, false, err
	}
	return record, true, nil
}

// WriteSpikeCSV writes one row per spike: neuron uid, module uid, time.
func WriteSpikeCSV(path string, trains []model.SpikeTrain) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"neuron", "module", "time"}); err != nil {
		return err
	}
	for _, train := range trains {
		for _, t := range train.Times {
			if err := writer.Write([]string{
				train.NeuronUID,
				train.Module,
				strconv.FormatFloat(t, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadSpikeCSV regroups the rows of a spikes.csv file into trains, keeping
// first-seen neuron order. Neurons that never fired are not in the file.
func ReadSpikeCSV(baseDir, runID string) ([]model.SpikeTrain, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "spikes.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.SpikeTrain{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 3 {
		return nil, false, fmt.Errorf("spike csv header must have 3 columns")
	}

	trains := make([]model.SpikeTrain, 0, 16)
	byNeuron := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		t, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, false, err
		}
		i, ok := byNeuron[record[0]]
		if !ok {
			i = len(trains)
			byNeuron[record[0]] = i
			trains = append(trains, model.SpikeTrain{NeuronUID: record[0], Module: record[1]})
		}
		trains[i].Times = append(trains[i].Times, t)
	}
	return trains, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
