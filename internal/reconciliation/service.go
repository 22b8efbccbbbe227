// Package reconciliation replays the vault event journal and compares the
// share balances it implies against what the custody ledger reports. Drift
// between the two means a credit or debit landed without its journal row,
// or the other way around, and is alerted on immediately.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/omnivault/crosschain-composer/internal/alert"
	"github.com/omnivault/crosschain-composer/internal/custody"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/store"
)

const defaultJournalPageSize = 500

// ShareCheck is the result of comparing one user's journal-derived share
// balance against the custody ledger.
type ShareCheck struct {
	User          string    `json:"user"`
	JournalShares string    `json:"journal_shares"`
	CustodyShares string    `json:"custody_shares"`
	Difference    string    `json:"difference"`
	IsMatch       bool      `json:"is_match"`
	CheckedAt     time.Time `json:"checked_at"`
}

// RunResult aggregates a full reconciliation run for one chain.
type RunResult struct {
	Chain      string       `json:"chain"`
	LocalEid   uint32       `json:"local_eid"`
	Total      int          `json:"total"`
	Matched    int          `json:"matched"`
	Mismatched int          `json:"mismatched"`
	Errors     int          `json:"errors"`
	JournalSeq int64        `json:"journal_sequence"`
	Checks     []ShareCheck `json:"checks"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

type chainTarget struct {
	localEid uint32
	reader   custody.BalanceReader
}

// Service compares journal state against custody state per chain. Chains
// are registered with the custody reader wired for them; chains whose
// ledger cannot report balances are simply never registered.
type Service struct {
	journal  store.EventJournal
	alerter  alert.Alerter
	logger   *slog.Logger
	pageSize int

	mu      sync.RWMutex
	targets map[string]chainTarget
}

type Option func(*Service)

// WithAlerter routes drift findings to an alert channel.
func WithAlerter(a alert.Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithPageSize overrides the journal read page size.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func NewService(journal store.EventJournal, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		journal:  journal,
		logger:   logger.With("component", "reconciliation"),
		pageSize: defaultJournalPageSize,
		targets:  make(map[string]chainTarget),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RegisterChain makes chain reconcilable against reader. Calling it again
// for the same chain replaces the previous registration.
func (s *Service) RegisterChain(chain string, localEid uint32, reader custody.BalanceReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[chain] = chainTarget{localEid: localEid, reader: reader}
}

// HasChain reports whether chain has been registered.
func (s *Service) HasChain(chain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.targets[chain]
	return ok
}

// Reconcile replays chain's journal into per-user expected share balances
// and checks each against custody. Only users the journal names are
// checked; on a healthy system custody never holds shares the journal
// does not explain.
func (s *Service) Reconcile(ctx context.Context, chain string) (*RunResult, error) {
	s.mu.RLock()
	target, ok := s.targets[chain]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chain %s not registered for reconciliation", chain)
	}

	result := &RunResult{
		Chain:     chain,
		LocalEid:  target.localEid,
		StartedAt: time.Now(),
	}

	expected, maxSeq, err := s.replayJournal(ctx, target.localEid)
	if err != nil {
		return nil, fmt.Errorf("replay journal for %s: %w", chain, err)
	}
	result.JournalSeq = maxSeq

	users := make([]string, 0, len(expected))
	for user := range expected {
		users = append(users, user)
	}
	sort.Strings(users)

	for _, user := range users {
		actual, err := target.reader.SharesOf(ctx, user)
		if err != nil {
			s.logger.Warn("custody balance query failed",
				"chain", chain, "user", user, "error", err)
			result.Errors++
			continue
		}

		check := s.compareShares(user, expected[user], actual)
		result.Checks = append(result.Checks, check)
		result.Total++
		if check.IsMatch {
			result.Matched++
		} else {
			result.Mismatched++
		}
	}

	result.FinishedAt = time.Now()

	metrics.ReconciliationRunsTotal.WithLabelValues(chain).Inc()
	metrics.ReconciliationCheckLatency.WithLabelValues(chain).
		Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	if result.Mismatched > 0 {
		metrics.ReconciliationDriftTotal.WithLabelValues(chain).Add(float64(result.Mismatched))

		if s.alerter != nil {
			_ = s.alerter.Send(ctx, alert.Alert{
				Type:    alert.AlertTypeDrift,
				Chain:   chain,
				Title:   "Custody share drift detected",
				Message: fmt.Sprintf("%d/%d users drifted from journal state", result.Mismatched, result.Total),
				Fields: map[string]string{
					"matched":          fmt.Sprintf("%d", result.Matched),
					"mismatched":       fmt.Sprintf("%d", result.Mismatched),
					"errors":           fmt.Sprintf("%d", result.Errors),
					"journal_sequence": fmt.Sprintf("%d", result.JournalSeq),
				},
			})
		}
	}

	s.logger.Info("reconciliation completed",
		"chain", chain,
		"total", result.Total, "matched", result.Matched,
		"mismatched", result.Mismatched, "errors", result.Errors,
		"journal_sequence", result.JournalSeq,
	)

	return result, nil
}

// replayJournal folds the full journal into signed per-user share deltas.
// Deposits credit, withdraws debit; rejection and advisory rows carry no
// share movement.
func (s *Service) replayJournal(ctx context.Context, localEid uint32) (map[string]*big.Int, int64, error) {
	expected := make(map[string]*big.Int)
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		events, err := s.journal.ListAfter(ctx, localEid, after, s.pageSize)
		if err != nil {
			return nil, 0, err
		}
		for _, ev := range events {
			after = ev.Sequence
			var delta *big.Int
			switch ev.Kind {
			case model.EventHubDepositReceived:
				delta = new(big.Int).SetUint64(ev.Shares)
			case model.EventWithdrawProcessed:
				delta = new(big.Int).Neg(new(big.Int).SetUint64(ev.Shares))
			default:
				continue
			}
			if ev.User == "" {
				continue
			}
			acc, ok := expected[ev.User]
			if !ok {
				acc = new(big.Int)
				expected[ev.User] = acc
			}
			acc.Add(acc, delta)
		}
		if len(events) < s.pageSize {
			return expected, after, nil
		}
	}
}

func (s *Service) compareShares(user string, journalShares *big.Int, custodyShares uint64) ShareCheck {
	actual := new(big.Int).SetUint64(custodyShares)
	diff := new(big.Int).Sub(journalShares, actual)
	return ShareCheck{
		User:          user,
		JournalShares: journalShares.String(),
		CustodyShares: actual.String(),
		Difference:    diff.String(),
		IsMatch:       diff.Sign() == 0,
		CheckedAt:     time.Now(),
	}
}

// ReconcileAny wraps Reconcile behind an any return, for callers that
// only relay results as JSON.
func (s *Service) ReconcileAny(ctx context.Context, chain string) (any, error) {
	return s.Reconcile(ctx, chain)
}

// RunPeriodic reconciles every registered chain at the given interval
// until the context ends.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	s.logger.Info("periodic reconciliation started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic reconciliation stopping")
			return
		case <-ticker.C:
			s.mu.RLock()
			chains := make([]string, 0, len(s.targets))
			for name := range s.targets {
				chains = append(chains, name)
			}
			s.mu.RUnlock()
			sort.Strings(chains)

			for _, chain := range chains {
				if _, err := s.Reconcile(ctx, chain); err != nil {
					s.logger.Warn("periodic reconciliation failed",
						"chain", chain, "error", err)
				}
			}
		}
	}
}
