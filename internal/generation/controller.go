package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dude/internal/domain"
	"dude/internal/gateway"
	"dude/internal/infra"
	"dude/internal/notify"
)

// Gateway is the remote generation service boundary.
type Gateway interface {
	Submit(ctx context.Context, req gateway.SubmitRequest) (string, error)
	CheckOperation(ctx context.Context, operationName string) (*gateway.OperationStatus, error)
}

// AssetStore persists completed videos to the gallery.
type AssetStore interface {
	UploadVideo(ctx context.Context, data []byte, mime string, params domain.GenerationParameters) (*domain.GeneratedVideo, error)
}

// Materializer turns a completed payload into a locally playable resource.
type Materializer interface {
	Materialize(ctx context.Context, data []byte, mime string) (*domain.MediaRef, error)
}

// Journal durably records the active operation handle so it outlives any one
// poll loop and survives a process restart.
type Journal interface {
	Save(ctx context.Context, operationName string, params domain.GenerationParameters) error
	Load(ctx context.Context) (string, domain.GenerationParameters, bool, error)
	Clear(ctx context.Context) error
}

// Config tunes the polling behavior.
type Config struct {
	// PollInterval is the fixed cadence between status checks.
	PollInterval time.Duration
	// GenerationTimeout is the wall-clock ceiling for one attempt.
	GenerationTimeout time.Duration
	// MaxConsecutivePollFailures caps transient transport errors before the
	// attempt is failed. A successful poll resets the count.
	MaxConsecutivePollFailures int
}

const (
	defaultPollInterval      = 10 * time.Second
	defaultGenerationTimeout = 30 * time.Minute
	defaultMaxPollFailures   = 8
)

// ControllerOptions wires a Controller's collaborators.
type ControllerOptions struct {
	Gateway  Gateway
	Library  AssetStore
	Media    Materializer
	Journal  Journal
	Notifier notify.Notifier
	Store    *Store
	Logger   infra.Logger
	Config   Config
}

// Controller owns the full life of one video generation request. It is the
// single writer of the shared Store; every asynchronous result is applied only
// after checking that the attempt it belongs to is still the current one, so a
// late response from a superseded attempt is a guaranteed no-op.
type Controller struct {
	gateway  Gateway
	library  AssetStore
	media    Materializer
	journal  Journal
	notifier notify.Notifier
	store    *Store
	logger   infra.Logger
	cfg      Config

	mu           sync.Mutex
	attempt      uint64
	operation    string
	params       domain.GenerationParameters
	startedAt    time.Time
	pollFailures int
	cancelPoll   context.CancelFunc
	closed       bool
}

// NewController validates the wiring and constructs a Controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("generation: gateway is required")
	}
	if opts.Media == nil {
		return nil, fmt.Errorf("generation: materializer is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("generation: store is required")
	}

	cfg := opts.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if cfg.MaxConsecutivePollFailures <= 0 {
		cfg.MaxConsecutivePollFailures = defaultMaxPollFailures
	}

	return &Controller{
		gateway:  opts.Gateway,
		library:  opts.Library,
		media:    opts.Media,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		store:    opts.Store,
		logger:   opts.Logger,
		cfg:      cfg,
	}, nil
}

// Store returns the observable state container.
func (c *Controller) Store() *Store {
	return c.store
}

// Start submits a new generation. Any in-flight attempt is superseded: its
// poll loop is cancelled before the new one is scheduled, and its late results
// are dropped.
func (c *Controller) Start(ctx context.Context, req domain.GenerationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	c.attempt++
	attemptID := c.attempt
	c.stopPollingLocked()
	c.operation = ""
	c.params = domain.GenerationParameters{
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
	}
	c.pollFailures = 0
	c.mu.Unlock()

	c.setState(attemptID, func(s *Snapshot) {
		*s = Snapshot{Status: domain.GenerationStarting, AttemptID: attemptID}
	})

	operation, err := c.gateway.Submit(ctx, gateway.SubmitRequest{
		Prompt:          req.Prompt,
		Reference:       req.Reference,
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
	})
	if err != nil {
		if c.setState(attemptID, func(s *Snapshot) {
			*s = Snapshot{Status: domain.GenerationFailed, ErrorMessage: "could not start video generation", AttemptID: attemptID}
		}) {
			c.notify(ctx, notify.SeverityError, "Video generation failed", "The generation request was not accepted.")
		}
		return fmt.Errorf("submit generation: %w", err)
	}

	c.mu.Lock()
	if c.closed || c.attempt != attemptID {
		// Superseded while the submit call was in flight.
		c.mu.Unlock()
		return nil
	}
	c.operation = operation
	c.startedAt = time.Now()
	params := c.params
	c.mu.Unlock()

	if c.journal != nil {
		if err := c.journal.Save(ctx, operation, params); err != nil {
			c.logger.Warn().Err(err).Str("operation", operation).Msg("generation: journal save failed")
		}
	}

	c.setState(attemptID, func(s *Snapshot) {
		*s = Snapshot{Status: domain.GenerationGenerating, OperationName: operation, AttemptID: attemptID}
	})
	c.startPolling(attemptID, operation)
	return nil
}

// Resume handles a host resume signal after the poll loop may have been
// suspended. It is a no-op unless a generation is in flight with a stored
// operation handle; then it performs one immediate poll and re-establishes the
// recurring timer.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	snap := c.store.Snapshot()
	if c.operation == "" || snap.Status != domain.GenerationGenerating {
		c.mu.Unlock()
		return domain.ErrNoActiveGeneration
	}
	attemptID := c.attempt
	operation := c.operation
	c.stopPollingLocked()
	c.mu.Unlock()

	c.logger.Debug().Str("operation", operation).Msg("generation: resume signal, restarting poll loop")
	c.startPolling(attemptID, operation)
	return nil
}

// Recover resumes a journaled operation after a process restart. Intended to
// be called once at boot, before the controller is exposed to callers.
func (c *Controller) Recover(ctx context.Context) error {
	if c.journal == nil {
		return nil
	}
	operation, params, ok, err := c.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("load generation journal: %w", err)
	}
	if !ok {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	c.attempt++
	attemptID := c.attempt
	c.stopPollingLocked()
	c.operation = operation
	c.params = params
	// The original submission time is not journaled; the timeout window
	// restarts from recovery.
	c.startedAt = time.Now()
	c.pollFailures = 0
	c.store.set(func(s *Snapshot) {
		*s = Snapshot{Status: domain.GenerationGenerating, OperationName: operation, AttemptID: attemptID}
	})
	c.mu.Unlock()

	c.logger.Info().Str("operation", operation).Msg("generation: resuming journaled operation")
	c.startPolling(attemptID, operation)
	return nil
}

// Close cancels any running poll loop. No further ticks fire after it returns;
// an in-flight poll result is dropped by the staleness guard.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopPollingLocked()
}

func (c *Controller) startPolling(attemptID uint64, operation string) {
	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closed || c.attempt != attemptID {
		c.mu.Unlock()
		cancel()
		return
	}
	c.stopPollingLocked()
	c.cancelPoll = cancel
	c.mu.Unlock()
	go c.pollLoop(loopCtx, attemptID, operation)
}

func (c *Controller) pollLoop(ctx context.Context, attemptID uint64, operation string) {
	// First check fires immediately; waiting a full interval before the first
	// status read makes short generations feel slower than they are.
	if c.pollOnce(ctx, attemptID, operation) {
		return
	}
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.pollOnce(ctx, attemptID, operation) {
				return
			}
		}
	}
}

// pollOnce performs a single status check and applies the result if the
// attempt is still current. It reports whether the loop should stop.
func (c *Controller) pollOnce(ctx context.Context, attemptID uint64, operation string) bool {
	c.mu.Lock()
	if c.closed || c.attempt != attemptID || c.operation != operation {
		c.mu.Unlock()
		return true
	}
	deadline := c.startedAt.Add(c.cfg.GenerationTimeout)
	c.mu.Unlock()

	if time.Now().After(deadline) {
		c.failAttempt(ctx, attemptID, "video generation timed out")
		return true
	}

	status, err := c.gateway.CheckOperation(ctx, operation)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		c.mu.Lock()
		if c.closed || c.attempt != attemptID {
			c.mu.Unlock()
			return true
		}
		c.pollFailures++
		failures := c.pollFailures
		c.mu.Unlock()
		c.logger.Warn().Err(err).
			Int("consecutive_failures", failures).
			Str("operation", operation).
			Msg("generation: poll failed, retrying on next tick")
		if failures >= c.cfg.MaxConsecutivePollFailures {
			c.failAttempt(ctx, attemptID, "the video generation service is unreachable")
			return true
		}
		return false
	}

	c.mu.Lock()
	if c.closed || c.attempt != attemptID || c.operation != operation {
		// Stale response for a superseded attempt; drop it.
		c.mu.Unlock()
		return true
	}
	c.pollFailures = 0

	if !status.Done {
		progress := clampProgress(status.Progress)
		c.store.set(func(s *Snapshot) {
			s.Status = domain.GenerationGenerating
			s.Progress = progress
		})
		c.mu.Unlock()
		return false
	}

	// Terminal. Clear the durable handle before releasing the lock so a late
	// duplicate of this response is recognized as stale.
	params := c.params
	c.operation = ""
	c.mu.Unlock()

	c.clearJournal(ctx)

	if status.Failed || len(status.Video) == 0 {
		c.failAttempt(ctx, attemptID, "video generation finished without a result")
		return true
	}

	media, err := c.media.Materialize(ctx, status.Video, status.MIME)
	if err != nil {
		c.logger.Error().Err(err).Msg("generation: materialize media failed")
		c.failAttempt(ctx, attemptID, "the generated video could not be stored")
		return true
	}

	c.setState(attemptID, func(s *Snapshot) {
		*s = Snapshot{Status: domain.GenerationReady, Progress: 100, Media: media, AttemptID: attemptID}
	})
	c.notify(ctx, notify.SeverityInfo, "Video ready", "Your video has finished generating.")

	// Persist to the gallery. Failure is non-fatal: the video stays playable
	// locally even when the save step degrades.
	if c.library != nil {
		if _, err := c.library.UploadVideo(ctx, status.Video, media.MIME, params); err != nil {
			c.logger.Warn().Err(err).Msg("generation: gallery upload failed")
			c.notify(ctx, notify.SeverityWarning, "Video not saved",
				"The video is ready but could not be saved to your gallery.")
		}
	}
	return true
}

func (c *Controller) failAttempt(ctx context.Context, attemptID uint64, message string) {
	c.mu.Lock()
	if c.attempt != attemptID {
		c.mu.Unlock()
		return
	}
	c.operation = ""
	c.store.set(func(s *Snapshot) {
		*s = Snapshot{Status: domain.GenerationFailed, ErrorMessage: message, AttemptID: attemptID}
	})
	c.mu.Unlock()

	c.clearJournal(ctx)
	c.notify(ctx, notify.SeverityError, "Video generation failed", message)
}

// setState applies a store mutation only if attemptID is still current.
func (c *Controller) setState(attemptID uint64, mutate func(*Snapshot)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != attemptID {
		return false
	}
	c.store.set(mutate)
	return true
}

func (c *Controller) stopPollingLocked() {
	if c.cancelPoll != nil {
		c.cancelPoll()
		c.cancelPoll = nil
	}
}

func (c *Controller) clearJournal(ctx context.Context) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("generation: journal clear failed")
	}
}

func (c *Controller) notify(ctx context.Context, severity notify.Severity, title, body string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, notify.Notification{Severity: severity, Title: title, Body: body})
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
