package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/qhosting/provisioning-service/internal/client"
	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/queue"
)

const (
	// Single-flight lock per domain; generously above the panel call
	// timeout so a held lock always means a live attempt
	domainLockTTL = 2 * time.Minute

	idleBackoff = time.Second
)

// JobQueue is the consumer side of the provisioning queue
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Ack(ctx context.Context, jobID string) error
	Nack(ctx context.Context, jobID string, retry bool) (bool, error)
	Requeue(ctx context.Context, jobID string) error
	TryLockDomain(ctx context.Context, domain string, ttl time.Duration) (string, error)
	UnlockDomain(ctx context.Context, domain, token string) error
}

// RecordStore is what the worker needs from the service record store
type RecordStore interface {
	GetByID(ctx context.Context, id string) (*models.ServiceRecord, error)
	MarkActive(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
}

// PanelAPI is the control-plane account-creation call
type PanelAPI interface {
	CreateAccount(ctx context.Context, req client.AccountRequest) (*client.AccountResult, error)
}

// AuditLog records one entry per attempt and transition
type AuditLog interface {
	Create(ctx context.Context, entry *models.ProvisionLog) error
}

// Notifier pushes terminal outcomes to the hub; may be disabled
type Notifier interface {
	Enabled() bool
	NotifyActive(ctx context.Context, svc *models.ServiceRecord) error
	NotifyFailed(ctx context.Context, svc *models.ServiceRecord, reason string) error
}

// Worker consumes provisioning jobs, executes them against the node
// control plane, and reports each outcome exactly once via ack/nack
type Worker struct {
	queue   JobQueue
	records RecordStore
	panel   PanelAPI
	logs    AuditLog
	hub     Notifier
	workers int

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func New(q JobQueue, records RecordStore, panel PanelAPI, logs AuditLog, hub Notifier, workers int) *Worker {
	if workers <= 0 {
		workers = 3
	}
	return &Worker{
		queue:   q,
		records: records,
		panel:   panel,
		logs:    logs,
		hub:     hub,
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the consumer goroutines
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true

	log.Printf("[worker] Starting %d provisioning workers", w.workers)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(i)
	}
}

// Stop signals the consumers and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	log.Printf("[worker] Stopping workers...")
	close(w.stopCh)
	w.running = false
	w.wg.Wait()
	log.Printf("[worker] All workers stopped")
}

func (w *Worker) run(id int) {
	defer w.wg.Done()
	log.Printf("[worker] Worker %d started", id)

	ctx := context.Background()
	for {
		select {
		case <-w.stopCh:
			log.Printf("[worker] Worker %d stopping", id)
			return
		default:
			job, err := w.queue.Dequeue(ctx)
			if err != nil {
				log.Printf("[worker] Worker %d dequeue error: %v", id, err)
				time.Sleep(idleBackoff)
				continue
			}
			if job == nil {
				continue
			}
			w.Process(ctx, job)
		}
	}
}

// Process executes one delivery of a job. Exported so redelivery and
// classification behavior can be driven directly in tests.
func (w *Worker) Process(ctx context.Context, job *queue.Job) {
	token, err := w.queue.TryLockDomain(ctx, job.Domain, domainLockTTL)
	if err != nil || token == "" {
		// Another worker is provisioning this domain; give the delivery
		// back without consuming retry budget
		if rqErr := w.queue.Requeue(ctx, job.ID); rqErr != nil {
			log.Printf("[worker] Failed to requeue contended job %s: %v", job.ID, rqErr)
		}
		return
	}
	defer func() {
		if ulErr := w.queue.UnlockDomain(ctx, job.Domain, token); ulErr != nil {
			log.Printf("[worker] Failed to unlock domain %s: %v", job.Domain, ulErr)
		}
	}()

	log.Printf("[worker] Job %s attempt %d/%d: createacct %s on %s (package %s)",
		job.ID, job.AttemptCount, job.MaxAttempts, job.Domain, job.TargetEndpoint, job.PanelPackage)

	result, err := w.panel.CreateAccount(ctx, client.AccountRequest{
		Username:     job.Username,
		Domain:       job.Domain,
		PanelPackage: job.PanelPackage,
		ContactEmail: job.ContactEmail,
		Endpoint:     job.TargetEndpoint,
	})
	if err != nil {
		w.handleTransient(ctx, job, err)
		return
	}

	switch result.Status {
	case client.ResultSuccess:
		w.complete(ctx, job, "Account created")
	case client.ResultAlreadyExists:
		// At-least-once redelivery after an unacked success lands here.
		// The match is a free-text heuristic, so keep the raw reason
		// visible to operators.
		log.Printf("[worker] Job %s: treating already-exists rejection as success (reason: %q)", job.ID, result.Reason)
		w.complete(ctx, job, fmt.Sprintf("Account already existed (panel reason: %s)", result.Reason))
	case client.ResultRejected:
		w.handleTerminal(ctx, job, result.Reason)
	default:
		w.handleTerminal(ctx, job, fmt.Sprintf("unrecognized panel result %q", result.Status))
	}
}

func (w *Worker) complete(ctx context.Context, job *queue.Job, detail string) {
	activated, err := w.records.MarkActive(ctx, job.ServiceID)
	if err != nil {
		// The panel call succeeded; retrying the job would re-run it for
		// nothing. Keep the job and let redelivery retry just the record
		// update.
		log.Printf("[worker] Job %s: account created but record update failed: %v", job.ID, err)
		if _, nackErr := w.queue.Nack(ctx, job.ID, true); nackErr != nil {
			log.Printf("[worker] Job %s nack error: %v", job.ID, nackErr)
		}
		return
	}

	if !activated {
		// Lost the compare-and-set: the record already left
		// pending_provision (duplicate delivery, or an admin action won
		// the race). The account exists, so the job is still done.
		log.Printf("[worker] Job %s: record %s no longer pending, leaving its status untouched", job.ID, job.ServiceID)
	}

	w.audit(ctx, job, "provision_succeeded", models.StatusActive, detail)

	if err := w.queue.Ack(ctx, job.ID); err != nil {
		log.Printf("[worker] Job %s ack error: %v", job.ID, err)
	}
	log.Printf("[worker] Job %s completed: %s active on %s (attempt %d)", job.ID, job.Domain, job.TargetEndpoint, job.AttemptCount)

	if w.hub != nil && w.hub.Enabled() && activated {
		if svc, err := w.records.GetByID(ctx, job.ServiceID); err == nil {
			if err := w.hub.NotifyActive(ctx, svc); err != nil {
				log.Printf("[worker] Hub notify (active) failed for %s: %v", job.ServiceID, err)
			}
		}
	}
}

func (w *Worker) handleTerminal(ctx context.Context, job *queue.Job, reason string) {
	log.Printf("[worker] Job %s rejected by panel on attempt %d: %s", job.ID, job.AttemptCount, reason)

	if _, err := w.records.MarkFailed(ctx, job.ServiceID, reason); err != nil {
		log.Printf("[worker] Job %s: failed to mark record failed: %v", job.ID, err)
	}
	w.audit(ctx, job, "provision_rejected", models.StatusFailed, reason)

	if _, err := w.queue.Nack(ctx, job.ID, false); err != nil {
		log.Printf("[worker] Job %s nack error: %v", job.ID, err)
	}

	w.notifyFailed(ctx, job, reason)
}

func (w *Worker) handleTransient(ctx context.Context, job *queue.Job, cause error) {
	log.Printf("[worker] Job %s transient failure on attempt %d/%d against %s: %v",
		job.ID, job.AttemptCount, job.MaxAttempts, job.TargetEndpoint, cause)
	w.audit(ctx, job, "provision_attempt_failed", models.StatusPendingProvision,
		fmt.Sprintf("Attempt %d/%d: %v", job.AttemptCount, job.MaxAttempts, cause))

	requeued, err := w.queue.Nack(ctx, job.ID, true)
	if err != nil {
		log.Printf("[worker] Job %s nack error: %v", job.ID, err)
		return
	}
	if requeued {
		// Record stays pending_provision while retries are progressing
		return
	}

	reason := fmt.Sprintf("retry budget exhausted after %d attempts: %v", job.AttemptCount, cause)
	if _, err := w.records.MarkFailed(ctx, job.ServiceID, reason); err != nil {
		log.Printf("[worker] Job %s: failed to mark record failed: %v", job.ID, err)
	}
	w.audit(ctx, job, "provision_exhausted", models.StatusFailed, reason)
	w.notifyFailed(ctx, job, reason)
}

func (w *Worker) notifyFailed(ctx context.Context, job *queue.Job, reason string) {
	if w.hub == nil || !w.hub.Enabled() {
		return
	}
	if svc, err := w.records.GetByID(ctx, job.ServiceID); err == nil {
		if err := w.hub.NotifyFailed(ctx, svc, reason); err != nil {
			log.Printf("[worker] Hub notify (failed) failed for %s: %v", job.ServiceID, err)
		}
	}
}

func (w *Worker) audit(ctx context.Context, job *queue.Job, action, status, message string) {
	err := w.logs.Create(ctx, &models.ProvisionLog{
		ServiceID: job.ServiceID,
		Action:    action,
		Status:    status,
		Message:   fmt.Sprintf("[job %s, attempt %d, node %s] %s", job.ID, job.AttemptCount, job.TargetEndpoint, message),
	})
	if err != nil {
		log.Printf("[worker] Failed to write audit log for job %s: %v", job.ID, err)
	}
}
