package job

import (
	"strings"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

var legalTransitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the job's lifecycle.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// CanTransition reports whether moving from one status to another is legal.
// Self-transitions are allowed so idempotent writers need no special casing.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority orders jobs within the scheduler. Lower Rank drains first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var allPriorities = []Priority{PriorityHigh, PriorityNormal, PriorityLow}

// AllPriorities returns priorities ordered from most to least urgent.
func AllPriorities() []Priority {
	cp := make([]Priority, len(allPriorities))
	copy(cp, allPriorities)
	return cp
}

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return normalized, true
	default:
		return "", false
	}
}

// Rank returns the numeric drain order: high=0, normal=1, low=2.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	default:
		return 2
	}
}

// Promote returns the next more urgent priority, or the receiver when it is
// already the most urgent. The scheduler's aging sweep uses this one level at
// a time.
func (p Priority) Promote() Priority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	default:
		return PriorityHigh
	}
}

// Job is the registry record for a single submission. Content bytes do not
// live here; they travel with the scheduler entry (or the cache's in-flight
// handle) so that finished jobs retain only metadata and results.
type Job struct {
	ID          string
	BatchID     string
	CallerID    string
	Source      string
	Mode        ocr.Mode
	Priority    Priority
	Status      Status
	Fingerprint string
	ContentSize int64
	Languages   []string

	Attempts int
	Progress float64

	// CacheHit records that the result came from the cache or a shared
	// execution rather than a dedicated engine run.
	CacheHit bool
	// ResultSuppressed is set when a cancel request arrives for a job that is
	// already running. The execution is not interrupted and the result is
	// still cached, but status reads withhold the payload.
	ResultSuppressed bool
	// BatchCounted guards the batch counters: the coordinator counts each
	// job's terminal outcome at most once no matter how often it observes it.
	BatchCounted bool

	Result       *ocr.Result
	ErrorMessage string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep enough copy for handing snapshots to readers. The
// Result pointer is shared; results are immutable once stored.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Languages != nil {
		cp.Languages = append([]string(nil), j.Languages...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Batch groups jobs admitted by a single submission.
type Batch struct {
	ID        string
	CallerID  string
	Total     int
	Completed int
	Failed    int
	Done      bool
	JobIDs    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy safe to hand to readers.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	cp := *b
	if b.JobIDs != nil {
		cp.JobIDs = append([]string(nil), b.JobIDs...)
	}
	return &cp
}

// Progress reports aggregate batch completion in [0,100].
func (b *Batch) ProgressPercent() float64 {
	if b == nil || b.Total == 0 {
		return 0
	}
	return float64(b.Completed+b.Failed) / float64(b.Total) * 100
}
