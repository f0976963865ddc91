package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"veritas/internal/analysis"
	"veritas/internal/scan/display"
	"veritas/internal/scan/dwell"
	"veritas/internal/scan/metrics"
	"veritas/internal/scan/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// EventType identifies a board event.
type EventType string

const (
	EventSnapshot   EventType = "snapshot"
	EventItem       EventType = "item"
	EventProgress   EventType = "progress"
	EventMonitoring EventType = "monitoring"
	EventNotice     EventType = "notice"
)

// NoticeCode identifies a transient, user-facing notice.
type NoticeCode string

const (
	// NoticePersistFailed: the scan result is shown but could not be saved.
	NoticePersistFailed NoticeCode = "persist_failed"
	// NoticeAnalysisFailed: the analysis failed and the item is shown as unverified.
	NoticeAnalysisFailed NoticeCode = "analysis_failed"
)

// Notice is a transient message for the page. It never changes item state.
type Notice struct {
	Code    NoticeCode `json:"code"`
	ItemID  id.ItemID  `json:"item_id,omitempty"`
	Message string     `json:"message"`
}

// ItemSnapshot is the rendered state of one item.
type ItemSnapshot struct {
	Item         models.DisplayItem        `json:"item"`
	Status       models.VerificationStatus `json:"status"`
	AlertMessage string                    `json:"alert_message,omitempty"`
	Progress     float64                   `json:"progress"`
	Dwelling     bool                      `json:"dwelling"`
	Present      bool                      `json:"present"`
	Icon         string                    `json:"icon"`
	View         display.View              `json:"view"`
}

// Snapshot is the full board state.
type Snapshot struct {
	Monitoring bool           `json:"monitoring"`
	Items      []ItemSnapshot `json:"items"`
}

// Event is pushed to board subscribers.
type Event struct {
	Type       EventType     `json:"type"`
	Snapshot   *Snapshot     `json:"snapshot,omitempty"`
	Item       *ItemSnapshot `json:"item,omitempty"`
	Monitoring *bool         `json:"monitoring,omitempty"`
	Notice     *Notice       `json:"notice,omitempty"`
}

// Recorder appends a completed scan to history.
type Recorder interface {
	AppendRecord(ctx context.Context, owner id.UserID, item models.DisplayItem, result models.AnalysisResult) (*models.ScanRecord, error)
}

type boardConfig struct {
	owner      id.UserID
	items      []models.DisplayItem
	monitoring bool
	analyzer   analysis.Analyzer
	recorder   Recorder
	clock      dwell.Clock
	threshold  time.Duration
	tick       time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type entry struct {
	item     models.DisplayItem
	state    *models.ItemState
	detector *dwell.Detector
	present  bool
}

// Board is the page-level scan controller for one user. It owns the item
// state machines and their dwell detectors, and turns each completed dwell
// into exactly one analysis.
//
// Lock order: a detector callback holds the detector's callback lock and
// then takes b.mu. Detectors are therefore never closed while b.mu is held.
type Board struct {
	owner    id.UserID
	analyzer analysis.Analyzer
	recorder Recorder
	clock    dwell.Clock
	tick     time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	ctx    context.Context // cancelled on Close; parent of analysis calls
	cancel context.CancelFunc
	wg     sync.WaitGroup // in-flight analyses

	mu         sync.Mutex
	entries    map[id.ItemID]*entry
	order      []id.ItemID
	monitoring bool
	closed     bool
	lastActive time.Time
	subs       map[uint64]chan Event
	nextSub    uint64
	ticker     dwell.Timer
}

func newBoard(cfg boardConfig) *Board {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		owner:      cfg.owner,
		analyzer:   cfg.analyzer,
		recorder:   cfg.recorder,
		clock:      cfg.clock,
		tick:       cfg.tick,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[id.ItemID]*entry, len(cfg.items)),
		monitoring: cfg.monitoring,
		lastActive: cfg.clock.Now(),
		subs:       make(map[uint64]chan Event),
	}
	for _, item := range cfg.items {
		itemID := item.ID
		e := &entry{
			item:  item,
			state: models.NewItemState(),
		}
		e.detector = dwell.New(func() { b.onDwellComplete(itemID) },
			dwell.WithClock(cfg.clock),
			dwell.WithThreshold(cfg.threshold),
			dwell.WithTick(cfg.tick),
		)
		e.detector.SetMonitoring(cfg.monitoring)
		b.entries[itemID] = e
		b.order = append(b.order, itemID)
	}
	b.mu.Lock()
	b.scheduleTickLocked()
	b.mu.Unlock()
	return b
}

// Owner returns the user the board belongs to.
func (b *Board) Owner() id.UserID { return b.owner }

// Presence records pointer or touch presence over an item.
func (b *Board) Presence(itemID id.ItemID, present bool) (ItemSnapshot, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ItemSnapshot{}, fmt.Errorf("board closed: %w", sentinel.ErrInvalidState)
	}
	e, ok := b.entries[itemID]
	if !ok {
		b.mu.Unlock()
		return ItemSnapshot{}, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	b.lastActive = b.clock.Now()
	changed := e.present != present
	e.present = present
	e.detector.SetPresent(present)
	snap := b.itemSnapshotLocked(e)
	b.mu.Unlock()

	if changed {
		b.publish(Event{Type: EventItem, Item: &snap})
	}
	return snap, nil
}

// SetMonitoring applies the protection toggle to every item. Turning it off
// pauses dwell accumulation but leaves item statuses alone.
func (b *Board) SetMonitoring(enabled bool) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.lastActive = b.clock.Now()
	changed := b.monitoring != enabled
	b.monitoring = enabled
	for _, itemID := range b.order {
		b.entries[itemID].detector.SetMonitoring(enabled)
	}
	b.mu.Unlock()

	if changed {
		b.publish(Event{Type: EventMonitoring, Monitoring: &enabled})
	}
}

// Monitoring reports the current toggle value.
func (b *Board) Monitoring() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.monitoring
}

// Reset returns every terminal item to pending, re-arming its detector.
// Items still scanning are left alone. Returns the number of items reset.
func (b *Board) Reset() int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	b.lastActive = b.clock.Now()
	var snaps []ItemSnapshot
	for _, itemID := range b.order {
		e := b.entries[itemID]
		if !e.state.Status().IsTerminal() {
			continue
		}
		if err := e.state.Reset(); err != nil {
			continue
		}
		e.detector.SetStatus(models.StatusPending)
		snaps = append(snaps, b.itemSnapshotLocked(e))
	}
	b.mu.Unlock()

	for i := range snaps {
		b.publish(Event{Type: EventItem, Item: &snaps[i]})
	}
	return len(snaps)
}

// ResetItem returns one terminal item to pending.
func (b *Board) ResetItem(itemID id.ItemID) (ItemSnapshot, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ItemSnapshot{}, fmt.Errorf("board closed: %w", sentinel.ErrInvalidState)
	}
	e, ok := b.entries[itemID]
	if !ok {
		b.mu.Unlock()
		return ItemSnapshot{}, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	wasPending := e.state.Status() == models.StatusPending
	if err := e.state.Reset(); err != nil {
		b.mu.Unlock()
		return ItemSnapshot{}, err
	}
	b.lastActive = b.clock.Now()
	e.detector.SetStatus(models.StatusPending)
	snap := b.itemSnapshotLocked(e)
	b.mu.Unlock()

	if !wasPending {
		b.publish(Event{Type: EventItem, Item: &snap})
	}
	return snap, nil
}

// Snapshot returns the full board state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Subscribe registers for board events. The first event is always a full
// snapshot. Delivery is non-blocking: a subscriber whose buffer is full
// misses events. The channel is closed by cancel or by Close.
func (b *Board) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	subID := b.nextSub
	b.nextSub++
	b.subs[subID] = ch
	snap := b.snapshotLocked()
	ch <- Event{Type: EventSnapshot, Snapshot: &snap}
	b.lastActive = b.clock.Now()
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[subID]; ok {
				delete(b.subs, subID)
				close(sub)
			}
			b.lastActive = b.clock.Now()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Board) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// IdleSince returns the last time the page interacted with the board.
func (b *Board) IdleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastActive
}

// Close stops every detector, cancels in-flight analyses and waits for them
// to finish. No event is published after Close returns.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.ticker != nil {
		b.ticker.Stop()
		b.ticker = nil
	}
	detectors := make([]*dwell.Detector, 0, len(b.entries))
	for _, e := range b.entries {
		detectors = append(detectors, e.detector)
	}
	b.mu.Unlock()

	for _, d := range detectors {
		d.Close()
	}
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	for subID, ch := range b.subs {
		delete(b.subs, subID)
		close(ch)
	}
	b.mu.Unlock()
}

// onDwellComplete runs on the detector's timer goroutine.
func (b *Board) onDwellComplete(itemID id.ItemID) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	e, ok := b.entries[itemID]
	if !ok {
		b.mu.Unlock()
		return
	}
	if b.metrics != nil {
		b.metrics.DwellCompletions.Inc()
	}
	if err := e.state.BeginScan(); err != nil {
		status := e.state.Status()
		b.mu.Unlock()
		b.logger.Warn("dwell completed for item that is not pending",
			"user_id", b.owner.String(),
			"item_id", string(itemID),
			"status", string(status),
			"error", err,
		)
		if b.metrics != nil {
			b.metrics.InvariantViolations.WithLabelValues(string(status)).Inc()
		}
		return
	}
	e.detector.SetStatus(models.StatusScanning)
	snap := b.itemSnapshotLocked(e)
	item := e.item
	b.wg.Add(1)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.ScansStarted.Inc()
	}
	b.publish(Event{Type: EventItem, Item: &snap})
	go b.runScan(item)
}

// runScan issues the single analysis for a completed dwell and applies its
// outcome. Failures resolve to unverified and are not recorded.
func (b *Board) runScan(item models.DisplayItem) {
	defer b.wg.Done()

	start := time.Now()
	result, err := b.analyzer.Analyze(b.ctx, item.AnalysisRequest())
	if b.metrics != nil {
		b.metrics.AnalysisLatency.Observe(time.Since(start).Seconds())
	}

	if err == nil {
		if verr := result.Validate(); verr != nil {
			err = analysis.NewError(analysis.CategoryBadData, "invalid analysis result", verr)
		}
	}

	status, alertMessage := result.VerificationStatus, result.AlertMessage
	if err != nil {
		status, alertMessage = models.StatusUnverified, ""
		category := analysis.CategoryOf(err)
		if b.metrics != nil {
			b.metrics.AnalysisFailures.WithLabelValues(string(category)).Inc()
		}
		if !errors.Is(err, context.Canceled) {
			b.logger.Warn("analysis failed",
				"user_id", b.owner.String(),
				"item_id", string(item.ID),
				"category", string(category),
				"error", err,
			)
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	e := b.entries[item.ID]
	if cerr := e.state.Complete(status, alertMessage); cerr != nil {
		b.mu.Unlock()
		b.logger.Error("failed to complete scan", "item_id", string(item.ID), "error", cerr)
		return
	}
	e.detector.SetStatus(status)
	snap := b.itemSnapshotLocked(e)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.ScansCompleted.WithLabelValues(string(status)).Inc()
	}
	b.publish(Event{Type: EventItem, Item: &snap})

	if err != nil {
		b.publish(Event{Type: EventNotice, Notice: &Notice{
			Code:    NoticeAnalysisFailed,
			ItemID:  item.ID,
			Message: "Could not complete the analysis for @" + item.Username,
		}})
		return
	}

	if _, perr := b.recorder.AppendRecord(b.ctx, b.owner, item, result); perr != nil {
		b.publish(Event{Type: EventNotice, Notice: &Notice{
			Code:    NoticePersistFailed,
			ItemID:  item.ID,
			Message: "Scan result for @" + item.Username + " could not be saved",
		}})
	}
}

// scheduleTickLocked arms the progress ticker. Progress events are only
// published while at least one item is accumulating dwell.
func (b *Board) scheduleTickLocked() {
	if b.closed || b.tick <= 0 {
		return
	}
	b.ticker = b.clock.AfterFunc(b.tick, b.onTick)
}

func (b *Board) onTick() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	var snaps []ItemSnapshot
	for _, itemID := range b.order {
		e := b.entries[itemID]
		if e.detector.Running() {
			snaps = append(snaps, b.itemSnapshotLocked(e))
		}
	}
	b.scheduleTickLocked()
	b.mu.Unlock()

	for i := range snaps {
		b.publish(Event{Type: EventProgress, Item: &snaps[i]})
	}
}

func (b *Board) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.metrics != nil {
				b.metrics.DroppedEvents.Inc()
			}
		}
	}
}

func (b *Board) snapshotLocked() Snapshot {
	snap := Snapshot{Monitoring: b.monitoring, Items: make([]ItemSnapshot, 0, len(b.order))}
	for _, itemID := range b.order {
		snap.Items = append(snap.Items, b.itemSnapshotLocked(b.entries[itemID]))
	}
	return snap
}

func (b *Board) itemSnapshotLocked(e *entry) ItemSnapshot {
	status := e.state.Status()
	return ItemSnapshot{
		Item:         e.item,
		Status:       status,
		AlertMessage: e.state.AlertMessage(),
		Progress:     e.detector.Progress(),
		Dwelling:     e.detector.Running(),
		Present:      e.present,
		Icon:         display.ProfessionIcon(e.item.Profession),
		View:         display.Render(status, e.state.AlertMessage()),
	}
}
