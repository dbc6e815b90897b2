package tracing

import "github.com/sarchlab/nvmain/sim"

// A DelayEvent records that a task was delayed.
type DelayEvent struct {
	EventID string
	TaskID  string
	Type    string
	What    string
	Source  string
	Time    sim.VTimeInSec
}

// A ProgressEvent records a progress update for a task.
type ProgressEvent struct {
	ProgressID string
	TaskID     string
	Source     string
	Time       sim.VTimeInSec
	Reason     string
}

// A DependencyEvent records the dependencies of a task.
type DependencyEvent struct {
	ProgressID      string
	DependentID     []string
	DependentIDJSON string
}

// TaskQuery specifies the criteria for querying tasks.
type TaskQuery struct {
	ID               string
	ParentID         string
	Kind             string
	Where            string
	EnableParentTask bool
	EnableTimeRange  bool
	StartTime        sim.VTimeInSec
	EndTime          sim.VTimeInSec
}

// DelayQuery specifies the criteria for querying delay events.
type DelayQuery struct {
	EventID         string
	TaskID          string
	Type            string
	Source          string
	EnableTimeRange bool
	StartTime       sim.VTimeInSec
	EndTime         sim.VTimeInSec
}

// ProgressQuery specifies the criteria for querying progress events.
type ProgressQuery struct {
	TaskID          string
	Source          string
	Reason          string
	EnableTimeRange bool
	StartTime       sim.VTimeInSec
	EndTime         sim.VTimeInSec
}
