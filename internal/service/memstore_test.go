package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	"github.com/noah-isme/recruit-pipeline-api/internal/repository"
)

// memStore is an in-memory stand-in for Postgres. A transaction holds the
// store mutex from Begin until Commit or Rollback, so units of work
// serialize the way row locks make them serialize in the database.
type memStore struct {
	mu          sync.Mutex
	submissions map[string]models.Submission
	jobs        map[string]models.Job
	candidates  map[string]bool
	activities  []models.ActivityRecord

	failActivity   error
	failUpdate     error
	failCommit     error
	codeCollisions int
	begins         int
	commits        int
}

func newMemStore() *memStore {
	return &memStore{
		submissions: make(map[string]models.Submission),
		jobs:        make(map[string]models.Job),
		candidates:  make(map[string]bool),
	}
}

func (m *memStore) addCandidate(code string) {
	m.candidates[code] = true
}

func (m *memStore) addJob(code string, openings int, status models.JobStatus) {
	m.jobs[code] = models.Job{
		Code:              code,
		ClientCode:        "CLI-001",
		Title:             "Engineer",
		Status:            status,
		OpeningsTotal:     openings,
		OpeningsRemaining: openings,
		CreatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) putSubmission(sub models.Submission) {
	if sub.InterviewDates == nil {
		sub.InterviewDates = pq.StringArray{}
	}
	m.submissions[sub.Code] = sub
}

func (m *memStore) submission(code string) models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions[code]
}

func (m *memStore) job(code string) models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[code]
}

func (m *memStore) activityLog() []models.ActivityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActivityRecord(nil), m.activities...)
}

func (m *memStore) Begin(ctx context.Context) (repository.Tx, error) {
	m.mu.Lock()
	m.begins++
	tx := &memTx{
		store:       m,
		submissions: make(map[string]models.Submission, len(m.submissions)),
		jobs:        make(map[string]models.Job, len(m.jobs)),
		activities:  append([]models.ActivityRecord(nil), m.activities...),
		savepoints:  make(map[string]int),
	}
	for k, v := range m.submissions {
		v.InterviewDates = append(pq.StringArray{}, v.InterviewDates...)
		tx.submissions[k] = v
	}
	for k, v := range m.jobs {
		tx.jobs[k] = v
	}
	return tx, nil
}

type memTx struct {
	store       *memStore
	submissions map[string]models.Submission
	jobs        map[string]models.Job
	activities  []models.ActivityRecord
	savepoints  map[string]int
	done        bool
}

func (t *memTx) LockSubmission(_ context.Context, code string) (*models.Submission, error) {
	sub, ok := t.submissions[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	sub.InterviewDates = append(pq.StringArray{}, sub.InterviewDates...)
	return &sub, nil
}

func (t *memTx) InsertSubmission(_ context.Context, sub *models.Submission) error {
	if t.store.codeCollisions > 0 {
		t.store.codeCollisions--
		return &pq.Error{Code: "23505", Constraint: repository.ConstraintSubmissionCode}
	}
	if _, exists := t.submissions[sub.Code]; exists {
		return &pq.Error{Code: "23505", Constraint: repository.ConstraintSubmissionCode}
	}
	if t.activePairTaken(sub) {
		return &pq.Error{Code: "23505", Constraint: repository.ConstraintActivePair}
	}
	t.submissions[sub.Code] = *sub
	return nil
}

func (t *memTx) UpdateSubmission(_ context.Context, sub *models.Submission) error {
	if t.store.failUpdate != nil {
		return t.store.failUpdate
	}
	current, ok := t.submissions[sub.Code]
	if !ok || current.Version != sub.Version-1 {
		return sql.ErrNoRows
	}
	if sub.IsActive && t.activePairTaken(sub) {
		return &pq.Error{Code: "23505", Constraint: repository.ConstraintActivePair}
	}
	t.submissions[sub.Code] = *sub
	return nil
}

func (t *memTx) activePairTaken(sub *models.Submission) bool {
	if !sub.IsActive {
		return false
	}
	for code, other := range t.submissions {
		if code != sub.Code && other.IsActive && other.CandidateCode == sub.CandidateCode && other.JobCode == sub.JobCode {
			return true
		}
	}
	return false
}

var memCodePattern = regexp.MustCompile(`^([A-Z]+)-([0-9]+)$`)

func (t *memTx) MaxSubmissionSequence(_ context.Context, prefix string) (int, error) {
	max := 0
	for code := range t.submissions {
		match := memCodePattern.FindStringSubmatch(code)
		if match == nil || match[1] != prefix {
			continue
		}
		n, _ := strconv.Atoi(match[2])
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (t *memTx) CandidateExists(_ context.Context, code string) (bool, error) {
	return t.store.candidates[code], nil
}

func (t *memTx) JobExists(_ context.Context, code string) (bool, error) {
	_, ok := t.jobs[code]
	return ok, nil
}

func (t *memTx) LockJob(_ context.Context, code string) (*models.Job, error) {
	job, ok := t.jobs[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &job, nil
}

func (t *memTx) UpdateJobCapacity(_ context.Context, code string, remaining int, status models.JobStatus) error {
	if remaining < 0 {
		return errors.New("jobs_openings_remaining_check")
	}
	job, ok := t.jobs[code]
	if !ok {
		return sql.ErrNoRows
	}
	job.OpeningsRemaining = remaining
	job.Status = status
	t.jobs[code] = job
	return nil
}

func (t *memTx) AppendActivity(_ context.Context, record *models.ActivityRecord) error {
	if t.store.failActivity != nil {
		return t.store.failActivity
	}
	record.ID = fmt.Sprintf("act-%d", len(t.activities)+1)
	record.CreatedAt = time.Now().UTC()
	t.activities = append(t.activities, *record)
	return nil
}

func (t *memTx) Savepoint(_ context.Context, name string) error {
	t.savepoints[name] = len(t.activities)
	return nil
}

func (t *memTx) RollbackToSavepoint(_ context.Context, name string) error {
	n, ok := t.savepoints[name]
	if !ok {
		return fmt.Errorf("savepoint %s does not exist", name)
	}
	t.activities = t.activities[:n]
	return nil
}

func (t *memTx) ReleaseSavepoint(_ context.Context, name string) error {
	delete(t.savepoints, name)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	if t.store.failCommit != nil {
		return t.store.failCommit
	}
	t.done = true
	t.store.submissions = t.submissions
	t.store.jobs = t.jobs
	t.store.activities = t.activities
	t.store.commits++
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// memSubmissions and memJobs serve the non-transactional read paths.
type memSubmissions struct{ store *memStore }

func (r memSubmissions) GetByCode(_ context.Context, code string) (*models.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sub, ok := r.store.submissions[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (r memSubmissions) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Submission
	for _, sub := range r.store.submissions {
		if filter.JobCode != "" && sub.JobCode != filter.JobCode {
			continue
		}
		if filter.ActiveOnly && !sub.IsActive {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code > out[j].Code })
	return out, nil
}

type memJobs struct{ store *memStore }

func (r memJobs) GetByCode(_ context.Context, code string) (*models.Job, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &job, nil
}

type memActivities struct{ store *memStore }

func (r memActivities) ListByEntity(_ context.Context, entityType, entityCode string) ([]models.ActivityRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.ActivityRecord
	for _, record := range r.store.activities {
		if record.EntityType == entityType && record.EntityCode == entityCode {
			out = append(out, record)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.SubmissionEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event models.SubmissionEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}
