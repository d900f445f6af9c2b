package mod

import (
	"sort"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/models"
)

// PendingStore keeps pending reversals, at most one per key.
// Claim and ClaimDue remove the job they return, so a job is handed out at most once.
type PendingStore interface {
	Put(job models.PendingPunishment) error
	Claim(key models.PendingKey) (models.PendingPunishment, bool, error)
	ClaimDue(key models.PendingKey, now time.Time) (models.PendingPunishment, bool, error)
	Due(now time.Time) ([]models.PendingKey, error)
	All() ([]models.PendingPunishment, error)
	Len() (int, error)
}

// MemoryStore is a PendingStore for a single process
type MemoryStore struct {
	sync.Mutex
	jobs map[models.PendingKey]models.PendingPunishment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[models.PendingKey]models.PendingPunishment)}
}

func (s *MemoryStore) Put(job models.PendingPunishment) error {
	s.Lock()
	defer s.Unlock()

	s.jobs[job.Key()] = job
	return nil
}

func (s *MemoryStore) Claim(key models.PendingKey) (models.PendingPunishment, bool, error) {
	s.Lock()
	defer s.Unlock()

	job, ok := s.jobs[key]
	if ok {
		delete(s.jobs, key)
	}
	return job, ok, nil
}

func (s *MemoryStore) ClaimDue(key models.PendingKey, now time.Time) (models.PendingPunishment, bool, error) {
	s.Lock()
	defer s.Unlock()

	job, ok := s.jobs[key]
	if !ok || job.DueAt.After(now) {
		return models.PendingPunishment{}, false, nil
	}
	delete(s.jobs, key)
	return job, true, nil
}

func (s *MemoryStore) Due(now time.Time) ([]models.PendingKey, error) {
	s.Lock()
	defer s.Unlock()

	due := make([]models.PendingPunishment, 0)
	for _, job := range s.jobs {
		if !job.DueAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	keys := make([]models.PendingKey, 0, len(due))
	for _, job := range due {
		keys = append(keys, job.Key())
	}
	return keys, nil
}

func (s *MemoryStore) All() ([]models.PendingPunishment, error) {
	s.Lock()
	defer s.Unlock()

	jobs := make([]models.PendingPunishment, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *MemoryStore) Len() (int, error) {
	s.Lock()
	defer s.Unlock()

	return len(s.jobs), nil
}
