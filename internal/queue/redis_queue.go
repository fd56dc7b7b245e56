package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key layout
	jobKeyPrefix     = "provision:job:"
	pendingKey       = "provision:pending"
	processingKey    = "provision:processing"
	delayedKey       = "provision:delayed"
	deadLetterKey    = "provision:dead"
	statsKey         = "provision:stats"
	domainLockPrefix = "provision:lock:"

	// Job settings
	DefaultMaxAttempts = 5
	jobTTL             = 24 * time.Hour
	dequeueBlock       = time.Second

	// Backoff for retried deliveries
	backoffBase = 5 * time.Second
	backoffCap  = 5 * time.Minute

	// Jobs stuck in processing longer than this are considered abandoned
	// by a crashed worker and made visible again
	VisibilityTimeout = 10 * time.Minute
)

// ErrQueueUnavailable wraps backend failures on the enqueue path so the
// caller can distinguish them from validation errors
var ErrQueueUnavailable = errors.New("job queue unavailable")

// RedisQueue is an at-least-once work queue on Redis lists. A delivery
// moves the job id from the pending list to the processing list in one
// step; the id leaves the processing list only on Ack, Nack, or sweeper
// recovery. A retried job waits in a delayed sorted set scored by its
// ready time, so at every moment the id lives in exactly one of pending,
// processing, delayed, or dead, and a worker crash never silently drops
// a job.
type RedisQueue struct {
	client      *redis.Client
	maxAttempts int

	mu       sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	sweeping bool
}

func NewRedisQueue(client *redis.Client, maxAttempts int) *RedisQueue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RedisQueue{
		client:      client,
		maxAttempts: maxAttempts,
		stopCh:      make(chan struct{}),
	}
}

// Enqueue stores the job and pushes its id onto the pending list.
// The job id and enqueue time are assigned here.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) (string, error) {
	job.ID = uuid.New().String()
	job.EnqueuedAt = time.Now()
	job.AttemptCount = 0
	job.MaxAttempts = q.maxAttempts

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL)
	pipe.LPush(ctx, pendingKey, job.ID)
	pipe.HIncrBy(ctx, statsKey, "enqueued", 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	log.Printf("[queue] Enqueued job %s (domain: %s, endpoint: %s)", job.ID, job.Domain, job.TargetEndpoint)
	return job.ID, nil
}

// Dequeue blocks briefly for the next job and delivers it, incrementing
// its attempt count. Returns (nil, nil) when the queue is empty.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, pendingKey, processingKey, dequeueBlock).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	job, err := q.getJob(ctx, id)
	if err != nil {
		// Orphaned id with no job data; drop it from processing
		q.client.LRem(ctx, processingKey, 1, id)
		return nil, fmt.Errorf("job data missing for %s: %w", id, err)
	}

	now := time.Now()
	job.AttemptCount++
	job.DeliveredAt = &now
	if err := q.putJob(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// Ack removes a finished job from the queue entirely
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.Pipeline()
	pipe.LRem(ctx, processingKey, 1, jobID)
	pipe.Del(ctx, jobKeyPrefix+jobID)
	pipe.HIncrBy(ctx, statsKey, "completed", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack %s: %w", jobID, err)
	}
	return nil
}

// Nack reports a failed delivery. With retry=true and budget remaining the
// job is rescheduled after an exponential backoff and true is returned;
// otherwise it is moved to the dead-letter list and false is returned.
func (q *RedisQueue) Nack(ctx context.Context, jobID string, retry bool) (bool, error) {
	job, err := q.getJob(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("nack %s: %w", jobID, err)
	}

	if !retry || job.Exhausted() {
		pipe := q.client.Pipeline()
		pipe.LRem(ctx, processingKey, 1, jobID)
		pipe.LPush(ctx, deadLetterKey, jobID)
		pipe.HIncrBy(ctx, statsKey, "dead", 1)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("dead-letter %s: %w", jobID, err)
		}
		log.Printf("[queue] Job %s dead-lettered after %d attempt(s)", jobID, job.AttemptCount)
		return false, nil
	}

	delay := BackoffDelay(job.AttemptCount)
	readyAt := time.Now().Add(delay)

	// Park the id in the delayed set before leaving processing, so the job
	// is always in some Redis structure even if the process dies here
	pipe := q.client.Pipeline()
	pipe.ZAdd(ctx, delayedKey, redis.Z{Score: float64(readyAt.Unix()), Member: jobID})
	pipe.LRem(ctx, processingKey, 1, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("nack delay %s: %w", jobID, err)
	}

	log.Printf("[queue] Job %s retry %d/%d scheduled in %s", jobID, job.AttemptCount, job.MaxAttempts, delay)
	time.AfterFunc(delay, func() {
		q.promote(context.Background(), jobID)
	})
	return true, nil
}

// promote moves a job from the delayed set to the pending list. ZRem is
// the ownership check: the timer and the sweeper can both call this for
// the same id, only the caller that removes it gets to push.
func (q *RedisQueue) promote(ctx context.Context, jobID string) {
	removed, err := q.client.ZRem(ctx, delayedKey, jobID).Result()
	if err != nil {
		log.Printf("[queue] Failed to promote job %s: %v", jobID, err)
		return
	}
	if removed == 0 {
		return
	}
	if err := q.client.LPush(ctx, pendingKey, jobID).Err(); err != nil {
		log.Printf("[queue] Failed to requeue job %s: %v", jobID, err)
	}
}

// Requeue returns an undelivered job to the pending list without consuming
// retry budget. Used when a delivery could not run at all, e.g. another
// worker holds the domain lock.
func (q *RedisQueue) Requeue(ctx context.Context, jobID string) error {
	job, err := q.getJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", jobID, err)
	}

	// Undo the delivery accounting
	if job.AttemptCount > 0 {
		job.AttemptCount--
	}
	job.DeliveredAt = nil
	if err := q.putJob(ctx, job); err != nil {
		return err
	}

	pipe := q.client.Pipeline()
	pipe.LRem(ctx, processingKey, 1, jobID)
	pipe.RPush(ctx, pendingKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue push %s: %w", jobID, err)
	}
	return nil
}

// unlockScript deletes the lock only when the caller still owns it
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// TryLockDomain takes the single-flight lock for a domain. Jobs for the
// same domain must not run concurrently. Returns the owner token on
// success, empty string when another holder has the lock.
func (q *RedisQueue) TryLockDomain(ctx context.Context, domain string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := q.client.SetNX(ctx, domainLockPrefix+domain, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock domain %s: %w", domain, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// UnlockDomain releases the single-flight lock for a domain. The token
// check means an attempt that outlived the lock TTL cannot release a
// lock that another worker has since acquired.
func (q *RedisQueue) UnlockDomain(ctx context.Context, domain, token string) error {
	return unlockScript.Run(ctx, q.client, []string{domainLockPrefix + domain}, token).Err()
}

// StartSweeper runs the recovery loop: jobs sitting in the processing
// list longer than VisibilityTimeout (crashed worker) and delayed jobs
// past their ready time (restart during a backoff window) are made
// pending again, which is what gives the queue its at-least-once
// delivery guarantee.
func (q *RedisQueue) StartSweeper(interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sweeping {
		return
	}
	q.sweeping = true

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		log.Printf("[queue] Sweeper running (visibility=%s, interval=%s)", VisibilityTimeout, interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ctx := context.Background()
		for {
			select {
			case <-q.stopCh:
				return
			case <-ticker.C:
				q.sweep(ctx)
			}
		}
	}()
}

// StopSweeper stops the recovery loop and waits for it to exit
func (q *RedisQueue) StopSweeper() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.sweeping {
		return
	}
	close(q.stopCh)
	q.sweeping = false
	q.wg.Wait()
}

func (q *RedisQueue) sweep(ctx context.Context) {
	q.sweepDelayed(ctx)
	q.sweepProcessing(ctx)
}

// sweepDelayed promotes delayed jobs whose ready time has passed but
// whose in-process timer never fired (restart during a backoff window)
func (q *RedisQueue) sweepDelayed(ctx context.Context) {
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil {
		log.Printf("[queue] Sweeper ZRangeByScore error: %v", err)
		return
	}
	for _, id := range due {
		log.Printf("[queue] Recovering delayed job %s past its ready time", id)
		q.promote(ctx, id)
	}
}

func (q *RedisQueue) sweepProcessing(ctx context.Context) {
	ids, err := q.client.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		log.Printf("[queue] Sweeper LRange error: %v", err)
		return
	}

	now := time.Now()
	for _, id := range ids {
		job, err := q.getJob(ctx, id)
		if err != nil {
			// Data expired or corrupt; drop the stray entry
			q.client.LRem(ctx, processingKey, 1, id)
			continue
		}

		delivered := job.DeliveredAt
		if delivered == nil {
			delivered = &job.EnqueuedAt
		}
		if now.Sub(*delivered) <= VisibilityTimeout {
			continue
		}

		log.Printf("[queue] Recovering stuck job %s (domain: %s), age=%s", id, job.Domain, now.Sub(*delivered))
		job.DeliveredAt = nil
		if err := q.putJob(ctx, job); err != nil {
			log.Printf("[queue] Sweeper update error for %s: %v", id, err)
			continue
		}
		q.client.LRem(ctx, processingKey, 1, id)
		q.client.RPush(ctx, pendingKey, id)
	}
}

// PendingSize returns the number of jobs awaiting delivery
func (q *RedisQueue) PendingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, pendingKey).Result()
}

// DeadLetterSize returns the number of dead-lettered jobs
func (q *RedisQueue) DeadLetterSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, deadLetterKey).Result()
}

func (q *RedisQueue) getJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (q *RedisQueue) putJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := q.client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

// BackoffDelay returns the retry delay after the given attempt number,
// doubling from backoffBase up to backoffCap
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	return delay
}
