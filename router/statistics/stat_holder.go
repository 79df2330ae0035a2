package statistics

import (
	"sync"
	"time"
)

type StatHolder interface {
	RecordStartTime(stage Stage, t time.Time)
	GetTimeData() *StartTimes
}

// StartTimes holds the start time of every running stage of one statement.
type StartTimes struct {
	mu     sync.Mutex
	starts map[Stage]time.Time
}

func (s *StartTimes) set(stage Stage, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starts == nil {
		s.starts = map[Stage]time.Time{}
	}
	s.starts[stage] = t
}

func (s *StartTimes) take(stage Stage) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.starts[stage]
	if ok {
		delete(s.starts, stage)
	}
	return t, ok
}

// StatementTimes is the StatHolder of a single statement.
type StatementTimes struct {
	times StartTimes
}

func NewStatementTimes() *StatementTimes {
	return &StatementTimes{}
}

func (s *StatementTimes) RecordStartTime(stage Stage, t time.Time) {
	s.times.set(stage, t)
}

func (s *StatementTimes) GetTimeData() *StartTimes {
	return &s.times
}

// Stage starts stage now and returns the func that finishes it.
func (s *StatementTimes) Stage(stage Stage) func() {
	RecordStartTime(stage, time.Now(), s)
	return func() {
		RecordFinishedStage(stage, time.Now(), s)
	}
}
