package model

import (
	"fmt"
	"time"
)

// DefaultTimeout bounds a single worker run.
const DefaultTimeout = 300 * time.Second

type State string

const (
	StateIdle      State = "idle"
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateResolved  State = "resolved"
)

// transitions lists the states reachable from each state. Anything not listed
// is rejected, which keeps jobs moving forward only.
var transitions = map[State][]State{
	StateIdle:      {StateLaunching},
	StateLaunching: {StateRunning, StateFailed},
	StateRunning:   {StateSucceeded, StateFailed, StateTimedOut},
	StateSucceeded: {StateResolved, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Job is one attempt to scrape a profile.
type Job struct {
	Profile   string    `json:"profile"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Deadline  time.Time `json:"deadline,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Stdout    []byte    `json:"-"`
	Stderr    []byte    `json:"-"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewJob(profile string) *Job {
	return &Job{Profile: profile, State: StateIdle}
}

// Transition moves the job to next, rejecting revisits and skips.
func (j *Job) Transition(next State) error {
	for _, s := range transitions[j.State] {
		if s == next {
			j.State = next
			return nil
		}
	}
	return fmt.Errorf("job %s: illegal transition %s -> %s", j.Profile, j.State, next)
}

// Start records the spawn time and derives the deadline.
func (j *Job) Start(now time.Time, timeout time.Duration) {
	j.StartedAt = now
	j.Deadline = now.Add(timeout)
}
