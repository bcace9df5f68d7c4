//go:build linux

package tracer

import "github.com/race-hunter/krace/pkg/kraceconfig"

// taskStatus is one tracked task's open/closed state for the round
// currently in progress.
type taskStatus struct {
	open bool
}

// raceState accounts opens/triggers/closes across tracked tasks for one
// round. A race point can be any combination of opens/triggers/closes
// (spec.md §4.3): triggers are counted first, against every OTHER
// currently-open task, before the firing task's own open/close edges are
// applied. The firing task itself never contributes to triggers, even when
// it is open at the moment a point that both triggers and closes fires.
type raceState struct {
	points   []kraceconfig.RacePoint
	tasks    map[int]*taskStatus
	count    int
	triggers int
}

func newRaceState(points []kraceconfig.RacePoint) *raceState {
	return &raceState{
		points: points,
		tasks:  make(map[int]*taskStatus),
	}
}

func (s *raceState) addTask(pid int) {
	s.tasks[pid] = &taskStatus{}
}

// resetRound clears every task back to closed and zeroes the round's
// tallies; each round is an independent probe of the race window.
func (s *raceState) resetRound() {
	s.count = 0
	s.triggers = 0
	for _, t := range s.tasks {
		t.open = false
	}
}

// apply classifies one event against the state machine. Events from an
// untracked pid (not registered via addTask) are ignored.
func (s *raceState) apply(ev raceEvent) {
	firing, tracked := s.tasks[ev.pid]
	if !tracked {
		return
	}
	point := s.points[ev.point]

	if point.Triggers {
		for pid, other := range s.tasks {
			if pid == ev.pid {
				continue
			}
			if other.open {
				s.triggers++
			}
		}
	}

	switch {
	case point.Opens && !firing.open:
		firing.open = true
	case point.Closes && firing.open:
		firing.open = false
		s.count++
	}
}
