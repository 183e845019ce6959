// Package history tracks build numbers and results of recurring jobs.
package history

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
)

const DefaultTTL = 24 * time.Hour

type jobHistory struct {
	lastNumber    int
	lastCompleted int
	lastResult    build.Result
	numbers       map[string]int
	// completed runs still present in numbers
	done map[string]struct{}
}

// Store remembers, per job name, which run got which build number and how the
// latest completed run ended. Only running runs and the latest completed run
// keep their number. Jobs idle for longer than the TTL are forgotten.
type Store struct {
	ttl   time.Duration
	cache *cache.Cache
	mu    sync.Mutex
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:   ttl,
		cache: cache.New(ttl, ttl/2),
	}
}

// Assign returns the build number of the run identified by uid, allocating the
// next number on first sight, and the result of the latest completed run of job.
func (s *Store) Assign(job, uid string) (int, build.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.get(job)
	number, ok := h.numbers[uid]
	if !ok {
		h.lastNumber++
		number = h.lastNumber
		h.numbers[uid] = number
	}
	s.cache.Set(job, h, s.ttl)
	return number, h.lastResult
}

// Complete records the result of the run identified by uid. Completed runs older
// than the latest completed one are dropped.
func (s *Store) Complete(job, uid string, result build.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.get(job)
	if _, ok := h.numbers[uid]; !ok {
		h.lastNumber++
		h.numbers[uid] = h.lastNumber
	}
	// a run finishing late must not override a newer run's result
	if number := h.numbers[uid]; number >= h.lastCompleted {
		h.lastCompleted = number
		h.lastResult = result
	}
	h.done[uid] = struct{}{}
	for done := range h.done {
		if h.numbers[done] < h.lastCompleted {
			delete(h.numbers, done)
			delete(h.done, done)
		}
	}
	s.cache.Set(job, h, s.ttl)
}

// Forget drops the number of a run whose Job is gone. The job's numbering and
// latest result are kept.
func (s *Store) Forget(job, uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(job)
	if !ok {
		return
	}
	h := v.(*jobHistory)
	delete(h.numbers, uid)
	delete(h.done, uid)
}

func (s *Store) get(job string) *jobHistory {
	if v, ok := s.cache.Get(job); ok {
		return v.(*jobHistory)
	}
	return &jobHistory{
		numbers: make(map[string]int),
		done:    make(map[string]struct{}),
	}
}
