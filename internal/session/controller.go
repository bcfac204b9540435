package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/hcplog/internal/privacy"
	"github.com/thebtf/hcplog/pkg/backend"
	"github.com/thebtf/hcplog/pkg/models"
)

// DefaultUpdatedDisplay is how long the updated status stays before reverting to succeeded.
const DefaultUpdatedDisplay = 3 * time.Second

// Operation names, used in logs, metrics and wrapped errors.
const (
	OpSaveManual = "save_manual"
	OpUpdate     = "update"
	OpLogAI      = "log_ai"
	OpFillForm   = "fill_form"
	OpChat       = "chat"
	OpQuery      = "query"
)

// fallbacks are shown when a failed response carries no detail.
var fallbacks = map[string]string{
	OpSaveManual: "Failed to save interaction.",
	OpUpdate:     "Failed to update.",
	OpLogAI:      "Failed to log interaction.",
	OpFillForm:   "Failed to fill form with AI.",
	OpChat:       "Failed to process the request.",
	OpQuery:      "Failed to get an answer.",
}

// Backend is the request/response boundary the controller drives.
// *backend.Client implements it.
type Backend interface {
	SaveManual(ctx context.Context, r models.InteractionRecord) (*backend.RecordResult, error)
	UpdateInteraction(ctx context.Context, r models.InteractionRecord) (*backend.RecordResult, error)
	LogInteraction(ctx context.Context, text string) (*backend.RecordResult, error)
	FillFormWithAI(ctx context.Context, text string) (*backend.RecordResult, error)
	ChatWithAI(ctx context.Context, text string) (*backend.QueryResult, error)
	Chat(ctx context.Context, text string, current models.LogID) (backend.ChatResult, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the clock driving the updated-status revert.
func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// WithUpdatedDisplay sets how long the updated status is shown.
func WithUpdatedDisplay(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.updatedDisplay = d
		}
	}
}

// WithContactRedaction replaces e-mail addresses and phone numbers in AI text.
func WithContactRedaction(enabled bool) Option {
	return func(ctl *Controller) {
		ctl.redactContacts = enabled
	}
}

// WithMetrics replaces the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(ctl *Controller) {
		ctl.metrics = m
	}
}

// Controller orchestrates session operations: it calls the backend, applies the
// result to the Store and tracks the lifecycle status.
//
// Operations block until the backend answers. The backend call runs without the
// state lock; the result is applied under it, so one mutation runs at a time.
// Results apply in completion order.
type Controller struct {
	clock   Clock
	revert  Timer
	backend Backend
	store   *Store
	metrics *Metrics
	subs    map[int]func(Snapshot)

	status      models.Status
	errMsg      string
	message     string
	suggestions []string

	updatedDisplay time.Duration
	seq            uint64
	version        uint64
	revertGen      uint64
	nextSub        int

	redactContacts bool

	mu    sync.Mutex
	subMu sync.Mutex

	// pubMu serializes delivery; lastPublished is the newest version delivered.
	pubMu         sync.Mutex
	lastPublished uint64
}

// NewController creates a controller over store and b.
func NewController(store *Store, b Backend, opts ...Option) *Controller {
	c := &Controller{
		store:          store,
		backend:        b,
		clock:          realClock{},
		updatedDisplay: DefaultUpdatedDisplay,
		status:         models.StatusIdle,
		subs:           make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = defaultMetrics()
	}
	store.now = c.clock.Now
	return c
}

// Store returns the underlying record store.
func (c *Controller) Store() *Store {
	return c.store
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Status returns the lifecycle status.
func (c *Controller) Status() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers fn to receive a snapshot after every change.
// Snapshots arrive in version order and older ones are dropped, so a subscriber
// always ends on the latest state. fn runs outside the state lock and may read
// the controller, but must not mutate it.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// StartNew discards the selection and begins a fresh draft.
func (c *Controller) StartNew() {
	c.mu.Lock()
	c.store.ResetDraft()
	c.message = ""
	c.suggestions = nil
	c.errMsg = ""
	c.setStatusLocked(models.StatusIdle)
	snap := c.changedLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// SelectExisting makes id current. Unknown ids change nothing and return false.
func (c *Controller) SelectExisting(id models.LogID) bool {
	c.mu.Lock()
	if !c.store.Select(id) {
		c.mu.Unlock()
		log.Debug().Str("logId", id.String()).Msg("Ignoring selection of unknown interaction")
		return false
	}
	c.message = ""
	c.suggestions = nil
	snap := c.changedLocked()
	c.mu.Unlock()

	c.publish(snap)
	return true
}

// EditField sets one field of the active record.
func (c *Controller) EditField(name, value string) error {
	c.mu.Lock()
	if err := c.store.EditField(name, value); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.changedLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// ClearHistory forgets every interaction of the session and starts a fresh draft.
func (c *Controller) ClearHistory() {
	c.mu.Lock()
	c.store.Clear()
	c.message = ""
	c.suggestions = nil
	c.errMsg = ""
	c.setStatusLocked(models.StatusIdle)
	snap := c.changedLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// SubmitManual saves the active record. A draft is created; a selected entry is updated in place.
func (c *Controller) SubmitManual(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkIdleLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	rec, err := c.store.Active()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	editing := !rec.LogID.IsZero()
	pending := models.StatusLoading
	if editing {
		pending = models.StatusUpdating
	}
	seq, snap := c.beginLocked(pending)
	c.mu.Unlock()
	c.publish(snap)

	start := c.clock.Now()
	res, err := c.backend.SaveManual(ctx, rec)
	c.metrics.record(ctx, OpSaveManual, c.clock.Now().Sub(start), err != nil)
	if err != nil {
		return c.fail(OpSaveManual, seq, err)
	}
	return c.applyRecord(OpSaveManual, seq, res, editing)
}

// SubmitUpdate sends the selected entry to the update endpoint.
func (c *Controller) SubmitUpdate(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkIdleLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	rec, ok := c.store.Current()
	if !ok {
		c.mu.Unlock()
		return ErrNoActiveRecord
	}
	seq, snap := c.beginLocked(models.StatusUpdating)
	c.mu.Unlock()
	c.publish(snap)

	start := c.clock.Now()
	res, err := c.backend.UpdateInteraction(ctx, rec)
	c.metrics.record(ctx, OpUpdate, c.clock.Now().Sub(start), err != nil)
	if err != nil {
		return c.fail(OpUpdate, seq, err)
	}
	return c.applyRecord(OpUpdate, seq, res, true)
}

// SubmitAICreateOrEdit sends free text with the current selection; the backend
// either creates or edits a record, or answers with a message.
func (c *Controller) SubmitAICreateOrEdit(ctx context.Context, text string) error {
	text, err := c.cleanText(text)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.checkIdleLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	current := c.store.CurrentLogID()
	seq, snap := c.beginLocked(models.StatusLoading)
	c.mu.Unlock()
	c.publish(snap)

	start := c.clock.Now()
	res, err := c.backend.Chat(ctx, text, current)
	c.metrics.record(ctx, OpChat, c.clock.Now().Sub(start), err != nil)
	if err != nil {
		return c.fail(OpChat, seq, err)
	}

	switch r := res.(type) {
	case *backend.RecordResult:
		return c.applyRecord(OpChat, seq, r, false)
	case *backend.QueryResult:
		c.applyMessage(OpChat, seq, r.Message)
		return nil
	default:
		return c.fail(OpChat, seq, fmt.Errorf("unexpected chat result %T", res))
	}
}

// SubmitAIQuery asks a question. History is never touched.
func (c *Controller) SubmitAIQuery(ctx context.Context, text string) error {
	text, err := c.cleanText(text)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.checkIdleLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	seq, snap := c.beginLocked(models.StatusLoading)
	c.mu.Unlock()
	c.publish(snap)

	start := c.clock.Now()
	res, err := c.backend.ChatWithAI(ctx, text)
	c.metrics.record(ctx, OpQuery, c.clock.Now().Sub(start), err != nil)
	if err != nil {
		return c.fail(OpQuery, seq, err)
	}
	c.applyMessage(OpQuery, seq, res.Message)
	return nil
}

// LogWithAI creates a record extracted from free text.
func (c *Controller) LogWithAI(ctx context.Context, text string) error {
	return c.submitExtraction(ctx, OpLogAI, text, c.backend.LogInteraction)
}

// FillFormWithAI creates a record extracted from free text and keeps the suggested follow-ups.
func (c *Controller) FillFormWithAI(ctx context.Context, text string) error {
	return c.submitExtraction(ctx, OpFillForm, text, c.backend.FillFormWithAI)
}

func (c *Controller) submitExtraction(
	ctx context.Context,
	op, text string,
	call func(context.Context, string) (*backend.RecordResult, error),
) error {
	text, err := c.cleanText(text)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.checkIdleLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	seq, snap := c.beginLocked(models.StatusLoading)
	c.mu.Unlock()
	c.publish(snap)

	start := c.clock.Now()
	res, err := call(ctx, text)
	c.metrics.record(ctx, op, c.clock.Now().Sub(start), err != nil)
	if err != nil {
		return c.fail(op, seq, err)
	}
	return c.applyRecord(op, seq, res, false)
}

// applyRecord upserts and selects the returned record. Edits that kept their
// identity end in updated, everything else in succeeded.
func (c *Controller) applyRecord(op string, seq uint64, res *backend.RecordResult, editing bool) error {
	c.mu.Lock()
	stored, err := c.store.Upsert(res.Record)
	if err != nil {
		c.mu.Unlock()
		return c.fail(op, seq, err)
	}
	c.store.Select(stored.LogID)
	c.noteStaleLocked(op, seq)
	c.suggestions = append([]string(nil), res.Suggestions...)
	if editing && !res.Created {
		c.setStatusLocked(models.StatusUpdated)
	} else {
		c.setStatusLocked(models.StatusSucceeded)
	}
	snap := c.changedLocked()
	c.mu.Unlock()

	log.Info().
		Str("op", op).
		Uint64("seq", seq).
		Str("logId", stored.LogID.String()).
		Bool("created", res.Created).
		Msg("Interaction stored")

	c.publish(snap)
	return nil
}

func (c *Controller) applyMessage(op string, seq uint64, msg string) {
	c.mu.Lock()
	c.noteStaleLocked(op, seq)
	c.message = msg
	c.setStatusLocked(models.StatusSucceeded)
	snap := c.changedLocked()
	c.mu.Unlock()

	log.Debug().Str("op", op).Uint64("seq", seq).Msg("AI answered")
	c.publish(snap)
}

// fail records a failed operation. State other than status and error is untouched.
func (c *Controller) fail(op string, seq uint64, err error) error {
	msg := fallbacks[op]
	var be *backend.BoundaryError
	if errors.As(err, &be) {
		msg = be.Message(msg)
	}

	c.mu.Lock()
	c.noteStaleLocked(op, seq)
	c.errMsg = msg
	c.setStatusLocked(models.StatusFailed)
	snap := c.changedLocked()
	c.mu.Unlock()

	log.Warn().Err(err).Str("op", op).Uint64("seq", seq).Msg("Session operation failed")
	c.publish(snap)
	return fmt.Errorf("%s: %w", op, err)
}

// checkIdleLocked rejects a submit while another request is pending.
func (c *Controller) checkIdleLocked() error {
	if c.status.InFlight() {
		return ErrRequestInFlight
	}
	return nil
}

// beginLocked moves to a pending status and clears per-request state.
func (c *Controller) beginLocked(pending models.Status) (uint64, Snapshot) {
	c.seq++
	c.errMsg = ""
	c.message = ""
	c.suggestions = nil
	c.setStatusLocked(pending)
	return c.seq, c.changedLocked()
}

// noteStaleLocked logs completions overtaken by a newer request. They are still applied.
func (c *Controller) noteStaleLocked(op string, seq uint64) {
	if seq < c.seq {
		log.Warn().Str("op", op).Uint64("seq", seq).Uint64("latest", c.seq).Msg("Applying stale completion")
	}
}

// setStatusLocked cancels any pending revert and schedules a new one when entering updated.
func (c *Controller) setStatusLocked(s models.Status) {
	c.cancelRevertLocked()
	c.status = s
	if s == models.StatusUpdated {
		gen := c.revertGen
		c.revert = c.clock.AfterFunc(c.updatedDisplay, func() {
			c.revertUpdated(gen)
		})
	}
}

func (c *Controller) cancelRevertLocked() {
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
	c.revertGen++
}

// revertUpdated fires when the updated display window elapses.
// gen guards against a timer that fired while it was being canceled.
func (c *Controller) revertUpdated(gen uint64) {
	c.mu.Lock()
	if gen != c.revertGen || c.status != models.StatusUpdated {
		c.mu.Unlock()
		return
	}
	c.revert = nil
	c.status = models.StatusSucceeded
	snap := c.changedLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// changedLocked bumps the version and returns the new snapshot.
func (c *Controller) changedLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:           c.status,
		Error:            c.errMsg,
		TransientMessage: c.message,
		Version:          c.version,
	}
	if len(c.suggestions) > 0 {
		snap.Suggestions = append([]string(nil), c.suggestions...)
	}
	c.store.fill(&snap)
	return snap
}

func (c *Controller) publish(snap Snapshot) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if snap.Version <= c.lastPublished {
		log.Debug().Uint64("version", snap.Version).Uint64("published", c.lastPublished).Msg("Dropping superseded snapshot")
		return
	}
	c.lastPublished = snap.Version

	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// cleanText strips private spans and, when enabled, redacts contact details.
func (c *Controller) cleanText(text string) (string, error) {
	text = privacy.Clean(text)
	if c.redactContacts {
		text = privacy.RedactContacts(text)
	}
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
