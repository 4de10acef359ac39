package runtime

import (
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
)

type jobKind int

const (
	jobUpsert jobKind = iota
	jobRename
)

// job is one pending write to the gateway.
// The payload is captured at enqueue time; the version may be rebased while queued.
type job struct {
	kind            jobKind
	autosave        bool
	graph           domain.Graph
	title           string
	expectedVersion uint64
	maxAttempts     int
	attempt         int
	revision        uint64
	enqueuedAt      time.Time

	done chan struct{}
	err  error
}

func newJob(kind jobKind, autosave bool, maxAttempts int) *job {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &job{kind: kind, autosave: autosave, maxAttempts: maxAttempts, done: make(chan struct{})}
}

// finish resolves the job exactly once.
func (j *job) finish(err error) {
	select {
	case <-j.done:
		return
	default:
	}
	j.err = err
	close(j.done)
}

// jobQueue is a FIFO of pending jobs. The engine lock guards it.
type jobQueue struct {
	jobs []*job
}

// push appends j. Autosaves replace every queued autosave; manual saves replace
// queued autosaves but keep earlier manual saves. Purged jobs are returned unfinished.
func (q *jobQueue) push(j *job) []*job {
	var purged []*job
	if j.kind == jobUpsert {
		kept := q.jobs[:0:0]
		for _, queued := range q.jobs {
			if queued.kind == jobUpsert && queued.autosave {
				purged = append(purged, queued)
				continue
			}
			kept = append(kept, queued)
		}
		q.jobs = kept
	}
	q.jobs = append(q.jobs, j)
	return purged
}

// pushFront re-enters a job for retry ahead of everything else.
func (q *jobQueue) pushFront(j *job) {
	q.jobs = append([]*job{j}, q.jobs...)
}

func (q *jobQueue) pop() *job {
	if len(q.jobs) == 0 {
		return nil
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j
}

// drain removes and returns every queued job.
func (q *jobQueue) drain() []*job {
	jobs := q.jobs
	q.jobs = nil
	return jobs
}

// rebase moves queued jobs that expected from onto to.
func (q *jobQueue) rebase(from, to uint64) {
	for _, j := range q.jobs {
		if j.expectedVersion == from {
			j.expectedVersion = to
		}
	}
}

func (q *jobQueue) hasAutosave() bool {
	for _, j := range q.jobs {
		if j.kind == jobUpsert && j.autosave {
			return true
		}
	}
	return false
}

func (q *jobQueue) len() int { return len(q.jobs) }
