package interp

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// JobState is a Job's position in spec §3.4's state machine
// (Running -> Stopped -> Running via SIGCONT, Running -> Done).
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	default:
		return "Done"
	}
}

// Job is one entry of the job table (spec §3.4 "Job"): a pipeline run in
// the background or suspended, tracked by process group.
type Job struct {
	ID     int
	PGID   int
	Cmd    string
	State  JobState
	Status int
	done   chan struct{}
}

// Wait blocks until the job reaches JobDone and returns its exit status.
func (j *Job) Wait() int {
	<-j.done
	return j.Status
}

// JobTable is the shell's `jobs`/`fg`/`bg`/`wait` backing store, created
// once in New. subRunner's shallow *r copy shares the same *JobTable, so
// jobs started in a subshell or pipeline stage are recorded in the table
// of the Runner they were spawned from.
type JobTable struct {
	mu   sync.Mutex
	next int
	jobs map[int]*Job
}

func NewJobTable() *JobTable {
	return &JobTable{jobs: map[int]*Job{}}
}

func (jt *JobTable) Add() *Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	jt.next++
	j := &Job{ID: jt.next, State: JobRunning, done: make(chan struct{})}
	jt.jobs[j.ID] = j
	return j
}

func (jt *JobTable) MarkDone(id, status int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	if j, ok := jt.jobs[id]; ok && j.State != JobDone {
		j.State = JobDone
		j.Status = status
		close(j.done)
	}
}

func (jt *JobTable) MarkStopped(id int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	if j, ok := jt.jobs[id]; ok {
		j.State = JobStopped
	}
}

func (jt *JobTable) MarkRunning(id int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	if j, ok := jt.jobs[id]; ok {
		j.State = JobRunning
	}
}

// List returns jobs in ascending ID order for the `jobs` builtin.
func (jt *JobTable) List() []*Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	out := make([]*Job, 0, len(jt.jobs))
	for _, j := range jt.jobs {
		out = append(out, j)
	}
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k-1].ID > out[k].ID; k-- {
			out[k-1], out[k] = out[k], out[k-1]
		}
	}
	return out
}

func (jt *JobTable) Get(id int) (*Job, bool) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	j, ok := jt.jobs[id]
	return j, ok
}

// Continue sends SIGCONT to a stopped job's process group (`bg`/`fg`'s
// Stopped -> Running transition, spec §3.4).
func (jt *JobTable) Continue(id int) error {
	j, ok := jt.Get(id)
	if !ok || j.PGID == 0 {
		return nil
	}
	jt.MarkRunning(id)
	return unix.Kill(-j.PGID, unix.SIGCONT)
}

// foregroundHandoff gives the controlling terminal to pgid and restores it
// to the shell's own process group afterward, the classic job-control
// dance (spec §5's concurrency/job-control model).
func foregroundHandoff(pgid int, body func()) {
	shellPgid, err := unix.Getpgid(os.Getpid())
	if err != nil {
		body()
		return
	}
	unix.IoctlSetInt(int(os.Stdin.Fd()), unix.TIOCSPGRP, pgid)
	body()
	unix.IoctlSetInt(int(os.Stdin.Fd()), unix.TIOCSPGRP, shellPgid)
}
