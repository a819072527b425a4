package batch

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/share-fetch"
)

// Fetcher is the part of share_fetch.Fetcher a Runner needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, destination string, onProgress share_fetch.ProgressFunc) share_fetch.DownloadResult
}

type Runner struct {
	fetcher     Fetcher
	destination string
	// Progress, if set, gives the progress callback for a job about to start.
	Progress func(job *Job) share_fetch.ProgressFunc
	// Done, if set, is called after each job finishes.
	Done func(job *Job)
	log  *zap.SugaredLogger
}

// NewRunner creates a Runner saving every download into the destination directory (the current directory if
// empty).
func NewRunner(fetcher Fetcher, destination string) *Runner {
	return &Runner{
		fetcher:     fetcher,
		destination: destination,
		log:         zap.S().Named("batch"),
	}
}

// Run processes lines one at a time. A failing job is recorded and the next one started; the error return is only
// for failures that prevent running the batch at all.
func (r *Runner) Run(ctx context.Context, lines []Line) (*Summary, error) {
	destination := r.destination
	if destination == "" {
		destination = "."
	}
	if err := os.MkdirAll(destination, 0775); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	summary := &Summary{Jobs: make([]*Job, 0, len(lines))}
	for _, line := range lines {
		summary.Jobs = append(summary.Jobs, newJob(line))
	}

	r.log.Infof("processing %d link(s) into %s", len(summary.Jobs), destination)
	for i, job := range summary.Jobs {
		if err := ctx.Err(); err != nil {
			job.finish(share_fetch.DownloadResult{
				Path: destination,
				Err:  share_fetch.NewError(share_fetch.NetworkFailure, "download", job.URL, err),
			})
			r.done(job)
			continue
		}
		r.log.Infof("[%d/%d] %s", i+1, len(summary.Jobs), job.URL)
		job.updateState(func(s *JobState) {
			s.Status = JobStatusDownloading
		})
		var progress share_fetch.ProgressFunc
		if r.Progress != nil {
			progress = r.Progress(job)
		}
		job.finish(r.fetcher.Fetch(ctx, job.URL, destination, progress))
		r.done(job)
	}
	r.log.Infof("summary: %s", summary)
	return summary, nil
}

func (r *Runner) done(job *Job) {
	if job.Status == JobStatusError {
		job.log().Warnf("failed: %s", job.Error)
	}
	if r.Done != nil {
		r.Done(job)
	}
}

// Summary is the per-job outcome of a batch.
type Summary struct {
	Jobs []*Job
}

func (s *Summary) Total() int {
	return len(s.Jobs)
}

func (s *Summary) Succeeded() int {
	n := 0
	for _, job := range s.Jobs {
		if job.Status == JobStatusComplete {
			n++
		}
	}
	return n
}

// Failed returns the jobs that did not complete.
func (s *Summary) Failed() []*Job {
	var failed []*Job
	for _, job := range s.Jobs {
		if job.Status != JobStatusComplete {
			failed = append(failed, job)
		}
	}
	return failed
}

// Err combines the errors of all failed jobs, or returns nil if every job succeeded.
func (s *Summary) Err() error {
	var result error
	for _, job := range s.Failed() {
		err := job.Result.Err
		if err == nil {
			err = fmt.Errorf("%s", job.Status)
		}
		result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[line %d]", job.Line)))
	}
	return result
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d successful", s.Succeeded(), s.Total())
}
