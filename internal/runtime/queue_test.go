package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobQueue_AutosavePurgesAutosaves(t *testing.T) {
	var q jobQueue
	first := newJob(jobUpsert, true, 4)
	manual := newJob(jobUpsert, false, 1)
	second := newJob(jobUpsert, true, 4)

	assert.Empty(t, q.push(first))
	assert.Empty(t, q.push(manual))
	purged := q.push(second)

	assert.Equal(t, []*job{first}, purged)
	assert.Equal(t, []*job{manual, second}, q.jobs)
}

func TestJobQueue_ManualKeepsManual(t *testing.T) {
	var q jobQueue
	auto := newJob(jobUpsert, true, 4)
	m1 := newJob(jobUpsert, false, 1)
	m2 := newJob(jobUpsert, false, 1)

	q.push(auto)
	q.push(m1)
	purged := q.push(m2)

	assert.Equal(t, []*job{auto}, purged)
	assert.Equal(t, []*job{m1, m2}, q.jobs)
	assert.False(t, q.hasAutosave())
}

func TestJobQueue_RenameDoesNotPurge(t *testing.T) {
	var q jobQueue
	auto := newJob(jobUpsert, true, 4)
	q.push(auto)
	assert.Empty(t, q.push(newJob(jobRename, false, 1)))
	assert.Equal(t, 2, q.len())
}

func TestJobQueue_PushFrontAndRebase(t *testing.T) {
	var q jobQueue
	a := newJob(jobUpsert, false, 1)
	a.expectedVersion = 3
	b := newJob(jobUpsert, false, 1)
	b.expectedVersion = 2
	q.push(a)
	q.pushFront(b)

	q.rebase(3, 4)
	assert.Equal(t, b, q.pop())
	assert.Equal(t, uint64(4), q.pop().expectedVersion)
	assert.Nil(t, q.pop())
}

func TestJob_FinishOnce(t *testing.T) {
	j := newJob(jobUpsert, false, 0)
	assert.Equal(t, 1, j.maxAttempts)

	j.finish(nil)
	j.finish(assert.AnError)
	<-j.done
	assert.NoError(t, j.err)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 1500 * time.Millisecond, Max: 15 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1500 * time.Millisecond},
		{1, 1500 * time.Millisecond},
		{2, 3 * time.Second},
		{3, 6 * time.Second},
		{4, 12 * time.Second},
		{5, 15 * time.Second},
		{60, 15 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
