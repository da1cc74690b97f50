package supervisor

import (
	"fmt"
	"sort"
	"time"
)

// TaskStats aggregates runs of all tasks sharing a name.
type TaskStats struct {
	Name        string        `json:"name"`
	Active      int64         `json:"active"`
	Started     uint64        `json:"started"`
	Restarts    uint64        `json:"restarts"`
	Panics      uint64        `json:"panics"`
	LastStartAt time.Time     `json:"last_start_at"`
	LastStopAt  time.Time     `json:"last_stop_at,omitempty"`
	LastErr     string        `json:"last_err,omitempty"`
	LastPanic   string        `json:"last_panic,omitempty"`
	Runtime     time.Duration `json:"runtime"`
}

type Snapshot struct {
	Active     int64       `json:"active"`
	Started    uint64      `json:"started"`
	FirstError string      `json:"first_error,omitempty"`
	Tasks      []TaskStats `json:"tasks"`
}

type taskStats struct {
	TaskStats
}

func (s *Supervisor) entry(name string) *taskStats {
	st := s.stats[name]
	if st == nil {
		st = &taskStats{TaskStats{Name: name}}
		s.stats[name] = st
	}
	return st
}

func (s *Supervisor) noteStart(name string, restart bool) time.Time {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(name)
	st.Started++
	st.Active++
	if restart {
		st.Restarts++
	}
	st.LastStartAt = now
	return now
}

func (s *Supervisor) noteStop(name string, startedAt time.Time, err error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(name)
	if st.Active > 0 {
		st.Active--
	}
	st.LastStopAt = now
	st.Runtime += now.Sub(startedAt)
	if err != nil {
		st.LastErr = err.Error()
	}
}

func (s *Supervisor) notePanic(name string, p any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(name)
	st.Panics++
	st.LastPanic = fmt.Sprint(p)
}

// Snapshot is a point-in-time view for the ops endpoint. Active tasks sort
// first, then by name.
func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{Active: s.active.Load(), Started: s.started.Load()}
	if err := s.Err(); err != nil {
		snap.FirstError = err.Error()
	}
	s.mu.Lock()
	for _, st := range s.stats {
		snap.Tasks = append(snap.Tasks, st.TaskStats)
	}
	s.mu.Unlock()
	sort.Slice(snap.Tasks, func(i, j int) bool {
		a, b := snap.Tasks[i], snap.Tasks[j]
		if (a.Active > 0) != (b.Active > 0) {
			return a.Active > 0
		}
		return a.Name < b.Name
	})
	return snap
}
