package batch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/share-fetch"
	"github.com/alanbriolat/share-fetch/generic"
)

type JobID string

func NewJobID() JobID {
	return JobID(generic.Unwrap(uuid.NewRandom()).String())
}

type JobStatus string

const (
	JobStatusNew         JobStatus = "new"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusComplete    JobStatus = "complete"
	JobStatusError       JobStatus = "error"
)

var finishedStatuses = generic.NewSet(
	JobStatusComplete,
	JobStatusError,
)

// IsFinished returns true if the status is terminal.
func (s JobStatus) IsFinished() bool {
	return finishedStatuses.Contains(s)
}

type JobState struct {
	ID      JobID
	Line    int
	URL     string
	AddedAt time.Time
	Status  JobStatus

	// Data from a finished job
	Path         string
	BytesWritten int64
	ErrorKind    string
	Error        string
}

// A Job is one line of a links file, processed once.
type Job struct {
	JobState
	Result share_fetch.DownloadResult
}

func newJob(line Line) *Job {
	return &Job{
		JobState: JobState{
			ID:      NewJobID(),
			Line:    line.Number,
			URL:     line.Text,
			AddedAt: time.Now(),
			Status:  JobStatusNew,
		},
	}
}

func (j *Job) String() string {
	return fmt.Sprintf("Job{ID:\"%s\", Line:%d, URL:\"%s\", Status:\"%s\"}", j.ID, j.Line, j.URL, j.Status)
}

func (j *Job) log() *zap.SugaredLogger {
	return zap.S().Named("batch").With("job_id", j.ID, "line", j.Line)
}

// Report is a one-line, human-readable outcome for the job.
func (j *Job) Report() string {
	switch j.Status {
	case JobStatusComplete:
		return fmt.Sprintf("[line %d] OK %s -> %s (%d bytes)", j.Line, j.URL, j.Path, j.BytesWritten)
	case JobStatusError:
		return fmt.Sprintf("[line %d] FAILED %s [%s]: %s", j.Line, j.URL, j.ErrorKind, j.Error)
	default:
		return fmt.Sprintf("[line %d] %s %s", j.Line, j.Status, j.URL)
	}
}

func (j *Job) finish(result share_fetch.DownloadResult) {
	j.Result = result
	j.updateState(func(s *JobState) {
		s.Path = result.Path
		s.BytesWritten = result.BytesWritten
		if result.Success {
			s.Status = JobStatusComplete
			return
		}
		s.Status = JobStatusError
		s.ErrorKind = result.Kind().UnwrapOr(share_fetch.NetworkFailure).Error()
		if result.Err != nil {
			s.Error = result.Err.Error()
		}
	})
}

func (j *Job) updateState(f func(s *JobState)) {
	old := j.JobState
	f(&j.JobState)
	changes, err := diff.Diff(old, j.JobState)
	if err != nil {
		j.log().Errorf("failed to diff old and new job state: %v", err)
		return
	}
	for _, change := range changes {
		j.log().Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
	}
}
