package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int64
	err   error
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a cron expression", &countingJob{name: "bad"})
	assert.Error(t, err)
}

func TestAddJobRunsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "every-second"}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRunNowExecutesImmediately(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "manual"}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestRunNowPropagatesJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "failing", err: assertError{}}

	err := s.RunNow(job)
	assert.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "job failed" }
