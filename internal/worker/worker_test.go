package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhosting/provisioning-service/internal/client"
	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/queue"
)

// fakeQueue tracks ack/nack/requeue outcomes for a single in-flight job
type fakeQueue struct {
	job      *queue.Job
	acked    []string
	nacked   []string
	dead     []string
	requeued []string
	locked   map[string]string
	lockBusy bool
}

func newFakeQueue(job *queue.Job) *fakeQueue {
	return &fakeQueue{job: job, locked: map[string]string{}}
}

func (f *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	return nil, nil
}

func (f *fakeQueue) Ack(ctx context.Context, jobID string) error {
	f.acked = append(f.acked, jobID)
	return nil
}

func (f *fakeQueue) Nack(ctx context.Context, jobID string, retry bool) (bool, error) {
	if !retry || f.job.Exhausted() {
		f.dead = append(f.dead, jobID)
		return false, nil
	}
	f.nacked = append(f.nacked, jobID)
	return true, nil
}

func (f *fakeQueue) Requeue(ctx context.Context, jobID string) error {
	f.requeued = append(f.requeued, jobID)
	if f.job.AttemptCount > 0 {
		f.job.AttemptCount--
	}
	return nil
}

func (f *fakeQueue) TryLockDomain(ctx context.Context, domain string, ttl time.Duration) (string, error) {
	if f.lockBusy {
		return "", nil
	}
	token := fmt.Sprintf("tok-%s", domain)
	f.locked[domain] = token
	return token, nil
}

func (f *fakeQueue) UnlockDomain(ctx context.Context, domain, token string) error {
	if f.locked[domain] == token {
		delete(f.locked, domain)
	}
	return nil
}

// fakeRecords implements the compare-and-set transition semantics
type fakeRecords struct {
	record        *models.ServiceRecord
	markActiveErr error
}

func (f *fakeRecords) GetByID(ctx context.Context, id string) (*models.ServiceRecord, error) {
	return f.record, nil
}

func (f *fakeRecords) MarkActive(ctx context.Context, id string) (bool, error) {
	if f.markActiveErr != nil {
		return false, f.markActiveErr
	}
	if f.record.Status != models.StatusPendingProvision {
		return false, nil
	}
	f.record.Status = models.StatusActive
	return true, nil
}

func (f *fakeRecords) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	if f.record.Status != models.StatusPendingProvision {
		return false, nil
	}
	f.record.Status = models.StatusFailed
	f.record.FailureReason = &reason
	return true, nil
}

// fakePanel returns scripted outcomes, one per attempt
type fakePanel struct {
	outcomes []panelOutcome
	calls    int
}

type panelOutcome struct {
	result *client.AccountResult
	err    error
}

func (f *fakePanel) CreateAccount(ctx context.Context, req client.AccountRequest) (*client.AccountResult, error) {
	i := f.calls
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	f.calls++
	out := f.outcomes[i]
	return out.result, out.err
}

type fakeWorkerLog struct {
	entries []*models.ProvisionLog
}

func (f *fakeWorkerLog) Create(ctx context.Context, entry *models.ProvisionLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeWorkerLog) actions() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeHub struct {
	active []string
	failed []string
}

func (f *fakeHub) Enabled() bool { return true }

func (f *fakeHub) NotifyActive(ctx context.Context, svc *models.ServiceRecord) error {
	f.active = append(f.active, svc.ID)
	return nil
}

func (f *fakeHub) NotifyFailed(ctx context.Context, svc *models.ServiceRecord, reason string) error {
	f.failed = append(f.failed, svc.ID)
	return nil
}

func testJob() *queue.Job {
	return &queue.Job{
		ID:             "job-1",
		ServiceID:      "SRV-1",
		Domain:         "mitienda.mx",
		Username:       "mitiend",
		TargetEndpoint: "n1.nodes.qhosting.net",
		PanelPackage:   "titan_pro_v2",
		ContactEmail:   "admin@qhosting.net",
		MaxAttempts:    5,
	}
}

func pendingRecord() *models.ServiceRecord {
	return &models.ServiceRecord{
		ID:     "SRV-1",
		Domain: "mitienda.mx",
		Status: models.StatusPendingProvision,
	}
}

// deliver simulates one queue delivery of the job through the worker
func deliver(w *Worker, job *queue.Job) {
	job.AttemptCount++
	w.Process(context.Background(), job)
}

func TestProcessSuccess(t *testing.T) {
	job := testJob()
	q := newFakeQueue(job)
	records := &fakeRecords{record: pendingRecord()}
	panel := &fakePanel{outcomes: []panelOutcome{
		{result: &client.AccountResult{Status: client.ResultSuccess}},
	}}
	logs := &fakeWorkerLog{}
	hub := &fakeHub{}

	w := New(q, records, panel, logs, hub, 1)
	deliver(w, job)

	assert.Equal(t, models.StatusActive, records.record.Status)
	assert.Equal(t, []string{"job-1"}, q.acked)
	assert.Empty(t, q.dead)
	assert.Contains(t, logs.actions(), "provision_succeeded")
	assert.Equal(t, []string{"SRV-1"}, hub.active)
	assert.Empty(t, q.locked, "domain lock must be released")
}

func TestProcessTransientThenSuccess(t *testing.T) {
	// Three timeouts then success: four attempts, all within the budget
	job := testJob()
	q := newFakeQueue(job)
	records := &fakeRecords{record: pendingRecord()}
	panel := &fakePanel{outcomes: []panelOutcome{
		{err: errors.New("dial tcp: i/o timeout")},
		{err: errors.New("dial tcp: i/o timeout")},
		{err: errors.New("dial tcp: i/o timeout")},
		{result: &client.AccountResult{Status: client.ResultSuccess}},
	}}
	logs := &fakeWorkerLog{}

	w := New(q, records, panel, logs, &fakeHub{}, 1)
	for i := 0; i < 4; i++ {
		deliver(w, job)
	}

	assert.Equal(t, models.StatusActive, records.record.Status)
	assert.Equal(t, 4, panel.calls)
	assert.Len(t, q.nacked, 3)
	assert.Equal(t, []string{"job-1"}, q.acked)
	assert.Empty(t, q.dead)
}

func TestProcessBudgetExhausted(t *testing.T) {
	job := testJob()
	q := newFakeQueue(job)
	records := &fakeRecords{record: pendingRecord()}
	panel := &fakePanel{outcomes: []panelOutcome{
		{err: errors.New("dial tcp: connection refused")},
	}}
	logs := &fakeWorkerLog{}
	hub := &fakeHub{}

	w := New(q, records, panel, logs, hub, 1)
	for i := 0; i < job.MaxAttempts; i++ {
		deliver(w, job)
	}

	assert.Equal(t, models.StatusFailed, records.record.Status)
	require.NotNil(t, records.record.FailureReason)
	assert.Contains(t, *records.record.FailureReason, "retry budget exhausted")
	assert.Len(t, q.nacked, 4)
	assert.Equal(t, []string{"job-1"}, q.dead)
	assert.Contains(t, logs.actions(), "provision_exhausted")
	assert.Equal(t, []string{"SRV-1"}, hub.failed)
}

func TestProcessTerminalRejection(t *testing.T) {
	// An explicit panel rejection fails immediately without retries
	job := testJob()
	q := newFakeQueue(job)
	records := &fakeRecords{record: pendingRecord()}
	panel := &fakePanel{outcomes: []panelOutcome{
		{result: &client.AccountResult{Status: client.ResultRejected, Reason: "Invalid domain name"}},
	}}
	logs := &fakeWorkerLog{}
	hub := &fakeHub{}

	w := New(q, records, panel, logs, hub, 1)
	deliver(w, job)

	assert.Equal(t, models.StatusFailed, records.record.Status)
	require.NotNil(t, records.record.FailureReason)
	assert.Equal(t, "Invalid domain name", *records.record.FailureReason)
	assert.Equal(t, 1, panel.calls)
	assert.Empty(t, q.nacked)
	assert.Equal(t, []string{"job-1"}, q.dead)
	assert.Contains(t, logs.actions(), "provision_rejected")
	assert.Equal(t, []string{"SRV-1"}, hub.failed)
}

func TestProcessAlreadyExistsIsSuccess(t *testing.T) {
	// Redelivery after an unacked success: the panel says the account is
	// already there, the record still goes active
	job := testJob()
	q := newFakeQueue(job)
	records := &fakeRecords{record: pendingRecord()}
	panel := &fakePanel{outcomes: []panelOutcome{
		{result: &client.AccountResult{Status: client.ResultAlreadyExists, Reason: "Account already exists: mitiend"}},
	}}
	logs := &fakeWorkerLog{}

	w := New(q, records, panel, logs, &fakeHub{}, 1)
	deliver(w, job)

	assert.Equal(t, models.StatusActive, records.record.Status)
	assert.Equal(t, []string{"job-1"}, q.acked)
	assert.Empty(t, q.dead)
}

func TestProcessDuplicateDeliveryAfterActive(t *testing.T) {
	// Second delivery of an already-completed job: MarkActive loses the
	// compare-and-set, the job is still acked and the record untouched
	job := testJob()
	q := newFakeQueue(job)
	record := pendingRecord()
	record.Status = models.StatusActive
	records := &fakeRecords{record: record}
	panel := &fakePanel{outcomes: []panelOutcome{
		{result: &client.AccountResult{Status: client.ResultAlreadyExists, Reason: "Account already exists: mitiend"}},
	}}
	hub := &fakeHub{}

	w := New(q, records, panel, &fakeWorkerLog{}, hub, 1)
	deliver(w, job)

	assert.Equal(t, models.StatusActive, records.record.Status)
	assert.Equal(t, []string{"job-1"}, q.acked)
	assert.Empty(t, hub.active, "lost CAS must not re-notify")
}

func TestProcessStoreErrorAfterPanelSuccess(t *testing.T) {
	// Panel call succeeded but the record update failed: keep the job for
	// redelivery, do not ack, do not dead-letter
	job := testJob()
	q := newFakeQueue(job)
	records := &fakeRecords{record: pendingRecord(), markActiveErr: fmt.Errorf("connection reset")}
	panel := &fakePanel{outcomes: []panelOutcome{
		{result: &client.AccountResult{Status: client.ResultSuccess}},
	}}

	w := New(q, records, panel, &fakeWorkerLog{}, &fakeHub{}, 1)
	deliver(w, job)

	assert.Empty(t, q.acked)
	assert.Empty(t, q.dead)
	assert.Len(t, q.nacked, 1)
}

func TestProcessLockContention(t *testing.T) {
	// Another worker holds the domain lock: give the delivery back without
	// burning retry budget or touching the panel
	job := testJob()
	q := newFakeQueue(job)
	q.lockBusy = true
	records := &fakeRecords{record: pendingRecord()}
	panel := &fakePanel{outcomes: []panelOutcome{
		{result: &client.AccountResult{Status: client.ResultSuccess}},
	}}

	w := New(q, records, panel, &fakeWorkerLog{}, &fakeHub{}, 1)
	deliver(w, job)

	assert.Equal(t, 0, panel.calls)
	assert.Equal(t, []string{"job-1"}, q.requeued)
	assert.Equal(t, 0, job.AttemptCount, "requeue must return the delivery's attempt")
	assert.Equal(t, models.StatusPendingProvision, records.record.Status)
}

func TestStartStop(t *testing.T) {
	q := newFakeQueue(testJob())
	w := New(q, &fakeRecords{record: pendingRecord()}, &fakePanel{outcomes: []panelOutcome{{err: errors.New("unused")}}}, &fakeWorkerLog{}, nil, 2)

	w.Start()
	w.Start() // second start is a no-op

	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop() // second stop is a no-op
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}
