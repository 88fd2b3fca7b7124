package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/robfig/cron"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

const (
	outcomeWriteTimeout = 10 * time.Second
	maxRetryBackoff     = time.Hour
)

type Options struct {
	Interval     time.Duration
	BatchSize    int
	Concurrency  int
	ItemTimeout  time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		Interval:     60 * time.Second,
		BatchSize:    20,
		Concurrency:  4,
		ItemTimeout:  5 * time.Minute,
		MaxAttempts:  1,
		RetryBackoff: time.Minute,
	}
}

// withDefaults fills every unset field from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = d.ItemTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	return o
}

// CredentialOpener turns a stored credential blob back into a credential.
type CredentialOpener interface {
	DecryptCredential(ciphertext string) (*models.Credential, error)
}

type PublisherSource interface {
	Get(provider string) (publisher.Publisher, error)
}

// TickLocker guards a tick across processes. Acquire reports false when
// another holder owns the lock.
type TickLocker interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

type TickReport struct {
	TickID    string
	Selected  int
	Published int
	Failed    int
	Retried   int
	Skipped   bool
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomePublished
	outcomeFailed
	outcomeRetried
)

type Dispatcher struct {
	posts      repository.PostRepository
	accounts   repository.SocialAccountRepository
	vault      CredentialOpener
	publishers PublisherSource
	opts       Options
	locker     TickLocker
	now        func() time.Time

	tickMu sync.Mutex

	mu       sync.Mutex
	cron     *cron.Cron
	baseCtx  context.Context
	cancel   context.CancelFunc
	stopped  bool
	inflight sync.WaitGroup

	// stopGrace bounds how long Stop keeps waiting after it cancels a tick.
	stopGrace time.Duration
}

func NewDispatcher(
	posts repository.PostRepository,
	accounts repository.SocialAccountRepository,
	vault CredentialOpener,
	publishers PublisherSource,
	opts Options) *Dispatcher {
	return &Dispatcher{
		posts:      posts,
		accounts:   accounts,
		vault:      vault,
		publishers: publishers,
		opts:       opts.withDefaults(),
		now:        time.Now,
		baseCtx:    context.Background(),
		stopGrace:  outcomeWriteTimeout,
	}
}

// WithLocker makes every tick take the lock first; a tick that cannot get
// it is skipped.
func (d *Dispatcher) WithLocker(l TickLocker) *Dispatcher {
	d.locker = l
	return d
}

func (d *Dispatcher) Options() Options {
	return d.opts
}

// Start schedules a tick every Interval. Ticks run under a context derived
// from ctx that Stop cancels once its own deadline passes.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrDispatcherStopped
	}
	if d.cron != nil {
		return errors.New("dispatcher already started")
	}

	d.baseCtx, d.cancel = context.WithCancel(ctx)
	baseCtx := d.baseCtx

	c := cron.New()
	c.Schedule(cron.Every(d.opts.Interval), cron.FuncJob(func() {
		if _, err := d.Tick(baseCtx); err != nil && !errors.Is(err, ErrDispatcherStopped) {
			slog.Error("dispatch tick failed", "error", err)
		}
	}))
	c.Start()
	d.cron = c

	slog.Info("dispatcher started",
		"interval", d.opts.Interval,
		"batch_size", d.opts.BatchSize,
		"concurrency", d.opts.Concurrency)
	return nil
}

// Stop halts the schedule and waits for an in-flight tick. If ctx ends
// first, the running tick is cancelled and Stop waits a further grace
// period for its outcome writes before returning ctx.Err().
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.cron != nil {
		d.cron.Stop()
	}
	d.stopped = true
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		slog.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		select {
		case <-done:
			slog.Warn("dispatcher stop timed out, in-flight tick cancelled")
		case <-time.After(d.stopGrace):
			slog.Error("dispatcher stop timed out, in-flight tick still running", "grace", d.stopGrace)
		}
		return ctx.Err()
	}
}

// Kick starts a tick in the background. It returns false when the
// dispatcher is stopped or a tick is already running.
func (d *Dispatcher) Kick() bool {
	d.mu.Lock()
	stopped, baseCtx := d.stopped, d.baseCtx
	d.mu.Unlock()
	if stopped || !d.tickMu.TryLock() {
		return false
	}
	d.tickMu.Unlock()

	go func() {
		report, err := d.Tick(baseCtx)
		if err != nil && !errors.Is(err, ErrDispatcherStopped) {
			slog.Error("kicked dispatch tick failed", "error", err)
			return
		}
		if report.Skipped {
			slog.Debug("kicked dispatch tick skipped", "tick_id", report.TickID)
		}
	}()
	return true
}

// Tick publishes every post that is due now, up to BatchSize. A tick that
// finds another one running returns at once with Skipped set.
func (d *Dispatcher) Tick(ctx context.Context) (TickReport, error) {
	tickID := uuid.NewString()
	report := TickReport{TickID: tickID}

	if !d.tickMu.TryLock() {
		report.Skipped = true
		slog.Warn("dispatch tick skipped, previous tick still running", "tick_id", report.TickID)
		return report, nil
	}
	defer d.tickMu.Unlock()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return report, ErrDispatcherStopped
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	if d.locker != nil {
		release, ok, err := d.locker.Acquire(ctx, d.lockTTL())
		if err != nil {
			return report, fmt.Errorf("acquiring tick lock: %w", err)
		}
		if !ok {
			report.Skipped = true
			slog.Info("dispatch tick skipped, lock held elsewhere", "tick_id", report.TickID)
			return report, nil
		}
		defer release()
	}

	started := d.now()
	posts, err := d.posts.Due(ctx, started, d.opts.BatchSize)
	if err != nil {
		slog.Error("selecting due posts", "tick_id", report.TickID, "error", err)
		return report, fmt.Errorf("selecting due posts: %w", err)
	}
	report.Selected = len(posts)
	if len(posts) == 0 {
		return report, nil
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, d.opts.Concurrency)
	)

	for _, post := range posts {
		wg.Add(1)
		sem <- struct{}{}

		go func(post *models.ScheduledPost) {
			defer wg.Done()
			defer func() { <-sem }()

			out := d.process(ctx, tickID, post)

			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomePublished:
				report.Published++
			case outcomeFailed:
				report.Failed++
			case outcomeRetried:
				report.Retried++
			}
		}(post)
	}
	wg.Wait()

	slog.Info("dispatch tick finished",
		"tick_id", report.TickID,
		"selected", report.Selected,
		"published", report.Published,
		"failed", report.Failed,
		"retried", report.Retried,
		"took", d.now().Sub(started))
	return report, nil
}

func (d *Dispatcher) process(ctx context.Context, tickID string, post *models.ScheduledPost) (out outcome) {
	log := slog.With("tick_id", tickID, "post_id", post.ID, "account_id", post.SocialAccountID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch item panicked", "panic", r)
			out = d.fail(ctx, log, post, fmt.Errorf("panic while publishing: %v", r), false)
		}
	}()

	if ctx.Err() != nil {
		return outcomeNone
	}

	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	acc, err := d.accounts.GetByID(itemCtx, post.SocialAccountID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return d.fail(ctx, log, post, fmt.Errorf("social account %d not found", post.SocialAccountID), false)
		}
		return d.fail(ctx, log, post, fmt.Errorf("loading social account: %w", err), true)
	}
	log = log.With("provider", acc.Provider)

	cred, err := d.vault.DecryptCredential(acc.EncryptedCredential)
	if err != nil {
		return d.fail(ctx, log, post, err, false)
	}

	pub, err := d.publishers.Get(acc.Provider)
	if err != nil {
		return d.fail(ctx, log, post, err, false)
	}

	res, err := pub.Publish(itemCtx, publisher.Account{
		ID:             acc.ID,
		UserID:         acc.UserID,
		ProviderUserID: acc.ProviderUserID,
		Credential:     cred,
	}, post.Content, post.MediaURLs())
	if err != nil && ctx.Err() != nil {
		log.Warn("publish interrupted by shutdown, post left pending", "error", err)
		return outcomeNone
	}
	if err != nil {
		var invalid *apperr.InvalidInputError
		return d.fail(ctx, log, post, err, !errors.As(err, &invalid))
	}

	record := &models.PostRecord{
		UserID:         post.UserID,
		Provider:       acc.Provider,
		PlatformPostID: res.PlatformPostID,
		Content:        post.Content,
		Metadata:       res.Raw,
	}

	wctx, wcancel := outcomeContext(ctx)
	defer wcancel()

	ok, err := d.posts.MarkPublished(wctx, post.ID, res.PlatformPostID, record)
	if err != nil {
		log.Error("post published but recording it failed",
			"platform_post_id", res.PlatformPostID, "error", err)
		return outcomeNone
	}
	if !ok {
		log.Warn("post left pending state before it could be marked published",
			"platform_post_id", res.PlatformPostID)
		return outcomeNone
	}

	log.Info("post published", "platform_post_id", res.PlatformPostID)
	return outcomePublished
}

// fail records cause against the post. Retryable causes reschedule the post
// while attempts remain.
func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, post *models.ScheduledPost, cause error, retryable bool) outcome {
	wctx, cancel := outcomeContext(ctx)
	defer cancel()

	if retryable && post.Attempts+1 < d.opts.MaxAttempts {
		next := d.now().Add(d.backoff(post.Attempts))
		ok, err := d.posts.Reschedule(wctx, post.ID, next, cause.Error())
		if err != nil {
			log.Error("rescheduling post", "cause", cause, "error", err)
			return outcomeNone
		}
		if !ok {
			return outcomeNone
		}
		log.Warn("publish failed, retry scheduled", "error", cause, "attempt", post.Attempts+1, "next", next)
		return outcomeRetried
	}

	ok, err := d.posts.MarkFailed(wctx, post.ID, cause.Error())
	if err != nil {
		log.Error("marking post failed", "cause", cause, "error", err)
		return outcomeNone
	}
	if !ok {
		return outcomeNone
	}
	log.Warn("publish failed", "error", cause)
	return outcomeFailed
}

// lockTTL covers the longest tick: every wave of Concurrency items running
// to ItemTimeout plus its outcome writes, and one more interval.
func (d *Dispatcher) lockTTL() time.Duration {
	waves := (d.opts.BatchSize + d.opts.Concurrency - 1) / d.opts.Concurrency
	return time.Duration(waves)*(d.opts.ItemTimeout+outcomeWriteTimeout) + d.opts.Interval
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.opts.RetryBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}

// outcomeContext keeps ctx's values but not its cancellation, so a
// shutdown or item timeout never drops a status write.
func outcomeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
}
