package models

import (
	"net/http"
	"time"
)

// JobStatus is the lifecycle state of a scrape job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed-out"
)

// Terminal reports whether no further transitions are allowed
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobTimedOut
}

// JobMode is the explicit override for seed classification
type JobMode string

const (
	ModeAuto     JobMode = "auto"
	ModeSingle   JobMode = "single"
	ModeListing  JobMode = "listing"
	ModeCrawl    JobMode = "crawl"
	ModeExternal JobMode = "external"
)

// JobKind is the strategy the orchestrator picked for a job
type JobKind string

const (
	KindSingle   JobKind = "single"
	KindListing  JobKind = "listing"
	KindCrawl    JobKind = "crawl"
	KindSearch   JobKind = "search"
	KindMarkup   JobKind = "markup"
	KindExternal JobKind = "external"
)

// JobSpec is the job descriptor accepted on submission
type JobSpec struct {
	URL       string `json:"url,omitempty" validate:"omitempty,url"`
	Query     string `json:"query,omitempty" validate:"omitempty,max=512"`
	Markup    string `json:"markup,omitempty"`
	SourceURL string `json:"source_url,omitempty" validate:"omitempty,url"`

	Mode          JobMode `json:"mode,omitempty" validate:"omitempty,oneof=auto single listing crawl external"`
	Render        bool    `json:"render"`
	ExpandDetails bool    `json:"expand_details"`
	MaxTargets    int     `json:"max_targets" validate:"gte=1,lte=1000"`
	MaxDepth      int     `json:"max_depth" validate:"gte=0,lte=10"`
	SameOrigin    bool    `json:"same_origin"`
	Concurrency   int     `json:"concurrency" validate:"gte=0,lte=16"`

	Goal         string            `json:"goal,omitempty"`
	ExportFormat string            `json:"export_format,omitempty"`
	Session      string            `json:"session,omitempty"`
	Filters      map[string]string `json:"filters,omitempty"`
}

// DefaultJobSpec returns a spec with the submission defaults applied
func DefaultJobSpec() JobSpec {
	return JobSpec{
		Mode:          ModeAuto,
		ExpandDetails: true,
		MaxTargets:    10,
		MaxDepth:      2,
		SameOrigin:    true,
		ExportFormat:  "json",
	}
}

// Job is one scrape request and its lifecycle state
type Job struct {
	ID         string     `json:"id"`
	Spec       JobSpec    `json:"spec"`
	Kind       JobKind    `json:"kind,omitempty"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Seed returns the URL the job starts from, if any
func (j *Job) Seed() string {
	if j.Spec.URL != "" {
		return j.Spec.URL
	}
	return j.Spec.SourceURL
}

// TargetStatus is the state of one target URL
type TargetStatus string

const (
	TargetPending    TargetStatus = "pending"
	TargetInProgress TargetStatus = "in-progress"
	TargetDone       TargetStatus = "done"
	TargetFailed     TargetStatus = "failed"
)

// Terminal reports whether the target has reached done or failed
func (s TargetStatus) Terminal() bool {
	return s == TargetDone || s == TargetFailed
}

// TargetURL is one page a job must fetch and extract
type TargetURL struct {
	JobID      string       `json:"job_id"`
	URL        string       `json:"url"`
	Key        string       `json:"key"`
	Seq        int          `json:"seq"`
	Depth      int          `json:"depth"`
	Status     TargetStatus `json:"status"`
	Record     Record       `json:"record,omitempty"`
	Error      string       `json:"error,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Attempts   int          `json:"attempts"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// NetworkCapture is an API response intercepted while a page rendered
type NetworkCapture struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	Status   int    `json:"status"`
	Body     []byte `json:"-"`
}

// PageCapture is the raw artifact of one page visit
type PageCapture struct {
	URL        string           `json:"url"`
	FinalURL   string           `json:"final_url,omitempty"`
	StatusCode int              `json:"status_code"`
	Headers    http.Header      `json:"headers,omitempty"`
	Title      string           `json:"title,omitempty"`
	HTML       string           `json:"-"`
	Rendered   bool             `json:"rendered"`
	Network    []NetworkCapture `json:"network,omitempty"`
	FetchedAt  time.Time        `json:"fetched_at"`
	Duration   time.Duration    `json:"duration"`
}

// Identity returns the best URL describing the captured page
func (c *PageCapture) Identity() string {
	if c.FinalURL != "" {
		return c.FinalURL
	}
	return c.URL
}

// Size estimates the memory held by the capture
func (c *PageCapture) Size() int64 {
	n := int64(len(c.HTML) + len(c.Title) + len(c.URL))
	for _, nc := range c.Network {
		n += int64(len(nc.Body) + len(nc.URL))
	}
	return n
}

// Progress counts targets by status
type Progress struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Add counts one target
func (p *Progress) Add(s TargetStatus) {
	p.Total++
	switch s {
	case TargetPending:
		p.Pending++
	case TargetInProgress:
		p.InProgress++
	case TargetDone:
		p.Done++
	case TargetFailed:
		p.Failed++
	}
}

// Finished reports whether every counted target is terminal
func (p Progress) Finished() bool {
	return p.Pending == 0 && p.InProgress == 0
}

// JobOutcome is the status view of a job: its state, counts and ordered targets
type JobOutcome struct {
	Job      *Job        `json:"job"`
	Progress Progress    `json:"progress"`
	Targets  []TargetURL `json:"targets,omitempty"`
}

// Records returns one entry per finished target in target order: the
// record of a done target, and for a failed target a record holding its
// error. With includeFailed false only done targets are returned.
func (o *JobOutcome) Records(includeFailed bool) []Record {
	var out []Record
	for _, t := range o.Targets {
		switch {
		case t.Status == TargetDone && t.Record != nil:
			out = append(out, t.Record)
		case t.Status == TargetFailed && includeFailed:
			out = append(out, FailureRecord(t))
		}
	}
	return out
}

// FailureRecord is the output entry of a failed target
func FailureRecord(t TargetURL) Record {
	return Record{
		FieldURL:     t.URL,
		FieldStatus:  string(TargetFailed),
		FieldError:   t.Error,
		"error_kind": t.ErrorKind,
		"attempts":   t.Attempts,
	}
}
