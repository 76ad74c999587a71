package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"axonsim/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	order       map[string]int
	seq         int
	spikes      map[string][]model.SpikeTrain
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.order = make(map[string]int)
	s.seq = 0
	s.spikes = make(map[string][]model.SpikeTrain)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = cloneRun(run)
	if _, ok := s.order[run.ID]; !ok {
		s.seq++
		s.order[run.ID] = s.seq
	}
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return s.order[runs[i].ID] > s.order[runs[j].ID]
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.order, id)
	delete(s.spikes, id)
	return nil
}

func (s *MemoryStore) SaveSpikeTrains(_ context.Context, runID string, trains []model.SpikeTrain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.spikes[runID] = cloneTrains(trains)
	return nil
}

func (s *MemoryStore) GetSpikeTrains(_ context.Context, runID string) ([]model.SpikeTrain, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trains, ok := s.spikes[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneTrains(trains), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func cloneRun(run model.RunRecord) model.RunRecord {
	out := run
	out.Inputs = append([]model.InputRecord(nil), run.Inputs...)
	out.Outputs = make([]model.OutputRecord, len(run.Outputs))
	for i, o := range run.Outputs {
		o.Spikes = append([]float64(nil), o.Spikes...)
		out.Outputs[i] = o
	}
	if run.RecallAt != nil {
		recall := *run.RecallAt
		out.RecallAt = &recall
	}
	if run.Processed != nil {
		out.Processed = make(map[string]int, len(run.Processed))
		for k, v := range run.Processed {
			out.Processed[k] = v
		}
	}
	return out
}

func cloneTrains(trains []model.SpikeTrain) []model.SpikeTrain {
	out := make([]model.SpikeTrain, len(trains))
	for i, train := range trains {
		train.Times = append([]float64(nil), train.Times...)
		out[i] = train
	}
	return out
}
