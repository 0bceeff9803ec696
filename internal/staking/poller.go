package staking

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"stakedeck/internal/compute"
	"stakedeck/internal/ports"
	"stakedeck/internal/pub"
	"stakedeck/internal/types"
)

// StakeMatchTolerance is the relative slack when matching a submitted stake
// amount against an observed position. Amounts can drift upward between
// submission and confirmation (rounding, accrued interest), so a position
// whose amount grew past the submitted amount also matches. Tunable, not a
// contract.
const StakeMatchTolerance = 0.01

// tickTimeout bounds one round of checks so a wedged call can't stall the
// loop past the next tick.
const tickTimeout = 25 * time.Second

const (
	EventStakeCompleted   = "stake_completed"
	EventStakeFailed      = "stake_failed"
	EventUnstakeCompleted = "unstake_completed"
	EventUnstakeFailed    = "unstake_failed"
)

// Poller resolves pending transactions from after-the-fact evidence: a
// matching position appearing (stake), the recorded position disappearing
// (unstake), or an explicit failure record. One loop runs per address on a
// fixed cadence and stops itself once that address has no non-terminal
// transactions left.
type Poller struct {
	co       *compute.Coordinator
	cfg      types.Config
	book     *Book
	markers  ports.PendingStakeStore
	notifier ports.Publisher
	bus      *pub.Bus
	interval time.Duration

	mu    sync.Mutex
	loops map[string]*pollLoop

	now func() time.Time
}

type pollLoop struct {
	stop chan struct{}
	kick chan struct{}
}

func NewPoller(co *compute.Coordinator, cfg types.Config, book *Book, markers ports.PendingStakeStore, notifier ports.Publisher, bus *pub.Bus) *Poller {
	return &Poller{
		co:       co,
		cfg:      cfg,
		book:     book,
		markers:  markers,
		notifier: notifier,
		bus:      bus,
		interval: cfg.PollInterval(),
		loops:    make(map[string]*pollLoop),
		now:      time.Now,
	}
}

// StartPolling begins the recurring check loop for an address. Idempotent: a
// second start while a loop is running is a no-op, so there is never more
// than one loop per address.
func (p *Poller) StartPolling(address string) {
	if address == "" {
		return
	}
	p.mu.Lock()
	if _, ok := p.loops[address]; ok {
		p.mu.Unlock()
		return
	}
	loop := &pollLoop{stop: make(chan struct{}), kick: make(chan struct{}, 1)}
	p.loops[address] = loop
	p.mu.Unlock()

	log.WithField("address", address).Info("polling started")
	go p.run(address, loop)
}

// StopPolling tears the loop down (wallet disconnect). A check already in
// progress is not aborted; only future scheduling stops.
func (p *Poller) StopPolling(address string) {
	p.mu.Lock()
	loop, ok := p.loops[address]
	if ok {
		delete(p.loops, address)
	}
	p.mu.Unlock()
	if ok {
		close(loop.stop)
		log.WithField("address", address).Info("polling stopped")
	}
}

// Polling reports whether a loop is active for the address.
func (p *Poller) Polling(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.loops[address]
	return ok
}

// CheckNow runs the checks inline, outside the timer cadence, so the caller
// observes the refreshed state on return. An active loop is kicked so its next
// scheduled check is a full interval away.
func (p *Poller) CheckNow(ctx context.Context, address string) {
	p.mu.Lock()
	loop, ok := p.loops[address]
	p.mu.Unlock()
	if ok {
		select {
		case loop.kick <- struct{}{}:
		default:
		}
	}
	p.tick(ctx, address)
}

// ResumeFromMarkers rebuilds pending transactions from the persisted markers
// and restarts polling for every address that has any. Called once at boot.
func (p *Poller) ResumeFromMarkers(ctx context.Context) error {
	addresses, err := p.markers.Addresses(ctx)
	if err != nil {
		return err
	}
	for _, address := range addresses {
		stakes, err := p.markers.List(ctx, address)
		if err != nil {
			log.WithError(err).WithField("address", address).Warn("failed to read pending-stake markers")
			continue
		}
		for _, m := range stakes {
			if _, ok := p.book.Get(m.ID); ok {
				continue
			}
			p.book.Track(types.Transaction{
				ID:           m.ID,
				Kind:         m.Kind,
				TokenAddress: m.TokenAddress,
				TokenSymbol:  m.TokenSymbol,
				Amount:       m.Amount,
				Address:      m.Address,
				PositionID:   m.PositionID,
				CreatedAt:    m.CreatedAt,
				Stage:        types.StagePending,
			})
		}
		if len(stakes) > 0 {
			p.StartPolling(address)
		}
	}
	return nil
}

func (p *Poller) run(address string, loop *pollLoop) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-loop.stop:
			return
		case <-loop.kick:
			// CheckNow already ran the checks inline; just push the
			// next scheduled one out a full interval.
			ticker.Reset(p.interval)
			continue
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		p.tick(ctx, address)
		cancel()

		if len(p.book.NonTerminal(address)) == 0 {
			p.mu.Lock()
			if p.loops[address] == loop {
				delete(p.loops, address)
			}
			p.mu.Unlock()
			log.WithField("address", address).Info("no pending transactions left, polling stopped")
			return
		}
	}
}

// tick refreshes the position list and tries to resolve every non-terminal
// transaction for the address. A refetch error leaves everything untouched
// for the next tick; an unresolved transaction is not an error.
func (p *Poller) tick(ctx context.Context, address string) {
	pending := p.book.NonTerminal(address)
	if len(pending) == 0 {
		return
	}
	positions, err := fetchPositions(ctx, p.co, p.cfg.Process, address, compute.CacheNone)
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("position refresh failed, leaving transactions pending")
		return
	}

	var failures []types.FailureRecord
	failuresLoaded := false
	for _, tx := range pending {
		p.book.BumpChecks(tx.ID)
		resolved := p.resolveByPositions(ctx, tx, positions)
		if resolved {
			continue
		}
		if !failuresLoaded {
			failures, err = fetchFailedOperations(ctx, p.co, p.cfg.Process, address)
			if err != nil {
				// A flaky status check never fails a transaction.
				log.WithError(err).WithField("address", address).Warn("failed-operations lookup errored, leaving transactions pending")
				return
			}
			failuresLoaded = true
		}
		for _, rec := range failures {
			if rec.Reference == tx.ID {
				p.fail(ctx, tx.ID, rec.Reason, rec.FailedAt)
				break
			}
		}
	}
}

// resolveByPositions checks the position-list evidence for one transaction
// and completes it when the effect is visible. Returns true when the
// transaction no longer needs the failure lookup.
func (p *Poller) resolveByPositions(ctx context.Context, tx types.Transaction, positions []types.Position) bool {
	switch tx.Kind {
	case types.TxStake:
		for _, pos := range positions {
			if pos.TokenAddress != tx.TokenAddress {
				continue
			}
			if pos.Amount >= tx.Amount*(1-StakeMatchTolerance) {
				p.complete(ctx, tx.ID, pos.ID)
				return true
			}
		}
	case types.TxUnstake:
		present := false
		for _, pos := range positions {
			if pos.ID == tx.PositionID {
				present = true
				break
			}
		}
		if !present {
			p.complete(ctx, tx.ID, tx.PositionID)
			return true
		}
	}
	return false
}

func (p *Poller) complete(ctx context.Context, id, positionID string) {
	tx, transitioned := p.book.MarkCompleted(id)
	if !transitioned {
		return
	}
	p.clearMarker(ctx, tx)
	eventType := EventStakeCompleted
	if tx.Kind == types.TxUnstake {
		eventType = EventUnstakeCompleted
	}
	p.notify(ctx, pub.Event{
		Type:        eventType,
		Address:     tx.Address,
		TxID:        tx.ID,
		TokenSymbol: tx.TokenSymbol,
		Amount:      tx.Amount,
		PositionID:  positionID,
		At:          p.now().Unix(),
	})
	log.WithFields(log.Fields{"tx": tx.ID, "kind": tx.Kind, "token": tx.TokenSymbol}).Info("transaction completed")
}

func (p *Poller) fail(ctx context.Context, id, reason string, failedAt int64) {
	if failedAt == 0 {
		failedAt = p.now().Unix()
	}
	tx, transitioned := p.book.MarkFailed(id, reason, failedAt)
	if !transitioned {
		return
	}
	p.clearMarker(ctx, tx)
	eventType := EventStakeFailed
	if tx.Kind == types.TxUnstake {
		eventType = EventUnstakeFailed
	}
	p.notify(ctx, pub.Event{
		Type:        eventType,
		Address:     tx.Address,
		TxID:        tx.ID,
		TokenSymbol: tx.TokenSymbol,
		Amount:      tx.Amount,
		PositionID:  tx.PositionID,
		Reason:      reason,
		At:          failedAt,
	})
	log.WithFields(log.Fields{"tx": tx.ID, "kind": tx.Kind, "reason": reason}).Warn("transaction failed")
}

// FailNow records an immediate, locally observed failure (for example a
// rejected submission) without waiting for a failure record to surface.
func (p *Poller) FailNow(ctx context.Context, id, reason string) {
	p.fail(ctx, id, reason, p.now().Unix())
}

func (p *Poller) clearMarker(ctx context.Context, tx types.Transaction) {
	if err := p.markers.Delete(ctx, tx.Address, tx.ID); err != nil {
		log.WithError(err).WithField("tx", tx.ID).Warn("failed to clear pending-stake marker")
	}
}

func (p *Poller) notify(ctx context.Context, e pub.Event) {
	if p.bus != nil {
		p.bus.Publish(e)
	}
	if p.notifier == nil || p.cfg.TopicARN == "" {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).Warn("failed to encode notification")
		return
	}
	if err := p.notifier.PublishRaw(ctx, p.cfg.TopicARN, payload); err != nil {
		log.WithError(err).WithField("tx", e.TxID).Warn("notification publish failed")
	}
}
