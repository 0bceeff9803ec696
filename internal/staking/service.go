package staking

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stakedeck/internal/compute"
	"stakedeck/internal/ports"
	"stakedeck/internal/types"
)

// estimatedStakeSeconds is the UI duration hint attached to new submissions.
const estimatedStakeSeconds = 60

// Service is the staking front: it validates dashboard requests, submits
// signed stake/unstake messages through the coordinator, records the pending
// transaction, and hands resolution to the poller.
type Service struct {
	co      *compute.Coordinator
	cfg     types.Config
	book    *Book
	markers ports.PendingStakeStore
	poller  *Poller
}

func NewService(co *compute.Coordinator, cfg types.Config, book *Book, markers ports.PendingStakeStore, poller *Poller) *Service {
	return &Service{co: co, cfg: cfg, book: book, markers: markers, poller: poller}
}

// Stake submits a signed stake for amount of the given token and returns the
// pending transaction record. The record is created before the submission so
// a crash mid-submit still leaves a resumable marker behind.
func (s *Service) Stake(ctx context.Context, address, tokenAddress string, amount float64) (types.Transaction, error) {
	if address == "" || tokenAddress == "" {
		return types.Transaction{}, types.Err(types.ErrInvalidRequest, nil, "address and token are required")
	}
	if amount <= 0 {
		return types.Transaction{}, types.Err(types.ErrInvalidRequest, nil, "amount must be positive")
	}
	token, ok := s.token(tokenAddress)
	if !ok {
		return types.Transaction{}, types.Err(types.ErrInvalidRequest, nil, "unknown token %s", tokenAddress)
	}

	tx := types.Transaction{
		ID:               uuid.NewString(),
		Kind:             types.TxStake,
		TokenAddress:     token.Address,
		TokenSymbol:      token.Symbol,
		Amount:           amount,
		Address:          address,
		CreatedAt:        s.poller.now().Unix(),
		Stage:            types.StagePending,
		EstimatedSeconds: estimatedStakeSeconds,
	}
	s.track(ctx, tx)

	_, err := s.co.Execute(ctx, compute.Request{
		Target: s.cfg.Process,
		Tags: []types.Tag{
			{Name: "Action", Value: "Stake"},
			{Name: "Token", Value: token.Address},
			{Name: "Quantity", Value: formatAmount(amount)},
			{Name: "Reference", Value: tx.ID},
		},
		Signer:  true,
		UserKey: address,
	})
	if err != nil {
		s.poller.FailNow(ctx, tx.ID, submitFailReason(err))
		tx, _ = s.book.Get(tx.ID)
		return tx, err
	}
	s.poller.StartPolling(address)
	return tx, nil
}

// Unstake submits a signed release of the identified position.
func (s *Service) Unstake(ctx context.Context, address, positionID string) (types.Transaction, error) {
	if address == "" || positionID == "" {
		return types.Transaction{}, types.Err(types.ErrInvalidRequest, nil, "address and position are required")
	}
	pos, err := s.findPosition(ctx, address, positionID)
	if err != nil {
		return types.Transaction{}, err
	}

	tx := types.Transaction{
		ID:               uuid.NewString(),
		Kind:             types.TxUnstake,
		TokenAddress:     pos.TokenAddress,
		TokenSymbol:      pos.TokenSymbol,
		Amount:           pos.Amount,
		Address:          address,
		PositionID:       positionID,
		CreatedAt:        s.poller.now().Unix(),
		Stage:            types.StagePending,
		EstimatedSeconds: estimatedStakeSeconds,
	}
	s.track(ctx, tx)

	_, err = s.co.Execute(ctx, compute.Request{
		Target: s.cfg.Process,
		Tags: []types.Tag{
			{Name: "Action", Value: "Unstake"},
			{Name: "Token", Value: pos.TokenAddress},
			{Name: "Position", Value: positionID},
			{Name: "Reference", Value: tx.ID},
		},
		Signer:  true,
		UserKey: address,
	})
	if err != nil {
		s.poller.FailNow(ctx, tx.ID, submitFailReason(err))
		tx, _ = s.book.Get(tx.ID)
		return tx, err
	}
	s.poller.StartPolling(address)
	return tx, nil
}

// Positions returns the user's position list, cached for a minute.
func (s *Service) Positions(ctx context.Context, address string) ([]types.Position, error) {
	if address == "" {
		return nil, types.Err(types.ErrInvalidRequest, nil, "address is required")
	}
	return fetchPositions(ctx, s.co, s.cfg.Process, address, compute.CacheMinute)
}

// Dashboard returns the derived metrics for the address.
func (s *Service) Dashboard(ctx context.Context, address string) (types.Dashboard, error) {
	positions, err := s.Positions(ctx, address)
	if err != nil {
		return types.Dashboard{}, err
	}
	return buildDashboard(address, positions, s.cfg.VestingDays, s.poller.now().Unix()), nil
}

// Transactions lists the tracked records for an address, oldest first.
func (s *Service) Transactions(address string) []types.Transaction {
	return s.book.ByAddress(address)
}

// Transaction returns one tracked record by id.
func (s *Service) Transaction(id string) (types.Transaction, bool) {
	return s.book.Get(id)
}

func (s *Service) RemoveCompleted(address string) int {
	return s.book.RemoveCompleted(address)
}

func (s *Service) Remove(id string) bool {
	return s.book.Remove(id)
}

// InMaintenance fails closed; see compute.Coordinator.InMaintenance.
func (s *Service) InMaintenance(ctx context.Context) bool {
	return s.co.InMaintenance(ctx, s.cfg.Process)
}

// Balance returns the wallet's token balance, nil when unknown.
func (s *Service) Balance(ctx context.Context, address string) *float64 {
	return s.co.Balance(ctx, s.cfg.Process, address)
}

// Denomination returns the token denomination used for display scaling.
func (s *Service) Denomination(ctx context.Context) int {
	return s.co.Denomination(ctx, s.cfg.Process, types.DefaultDenomination)
}

func (s *Service) track(ctx context.Context, tx types.Transaction) {
	s.book.Track(tx)
	marker := types.PendingStake{
		ID:           tx.ID,
		Address:      tx.Address,
		Kind:         tx.Kind,
		TokenAddress: tx.TokenAddress,
		TokenSymbol:  tx.TokenSymbol,
		Amount:       tx.Amount,
		PositionID:   tx.PositionID,
		CreatedAt:    tx.CreatedAt,
	}
	if err := s.markers.Put(ctx, marker); err != nil {
		// Marker loss only costs resume-on-restart, never the transaction.
		log.WithError(err).WithField("tx", tx.ID).Warn("failed to write pending-stake marker")
	}
}

func (s *Service) token(address string) (types.TokenConfig, bool) {
	for _, t := range s.cfg.Tokens {
		if strings.EqualFold(t.Address, address) || strings.EqualFold(t.Symbol, address) {
			return t, true
		}
	}
	return types.TokenConfig{}, false
}

func (s *Service) findPosition(ctx context.Context, address, positionID string) (types.Position, error) {
	positions, err := fetchPositions(ctx, s.co, s.cfg.Process, address, compute.CacheNone)
	if err != nil {
		return types.Position{}, err
	}
	for _, p := range positions {
		if p.ID == positionID {
			return p, nil
		}
	}
	return types.Position{}, types.Err(types.ErrNotFound, nil, "position %s", positionID)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func submitFailReason(err error) string {
	return "submission failed: " + err.Error()
}
