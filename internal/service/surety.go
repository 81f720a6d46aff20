package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/punchamoorthee/suretyops/internal/domain"
	"github.com/punchamoorthee/suretyops/internal/ledger"
)

// Identity is the account the orchestration layer acts under. It must be in
// the ledger's authorized-caller set for quorum resolution to credit policies;
// the bootstrap flow authorizes it at startup.
const Identity domain.Account = "svc:suretyops"

// Journal receives committed core mutations and serves them back for audit
// reads. Writes are best-effort: a journal failure is logged, never
// propagated, and never unwinds core state.
type Journal interface {
	Append(ctx context.Context, e domain.JournalEntry) error
	EntriesByActor(ctx context.Context, actor domain.Account) ([]domain.JournalEntry, error)
}

// NopJournal discards entries. Used when no database is configured.
type NopJournal struct{}

func (NopJournal) Append(context.Context, domain.JournalEntry) error { return nil }

func (NopJournal) EntriesByActor(context.Context, domain.Account) ([]domain.JournalEntry, error) {
	return nil, nil
}

// SuretyService orchestrates the core ledger: it forwards calls, journals
// committed mutations, and converts an oracle quorum into an insurance credit
// as the authorized caller.
type SuretyService struct {
	ledger  *ledger.Ledger
	journal Journal
	log     *logrus.Logger
}

func NewSuretyService(l *ledger.Ledger, j Journal, log *logrus.Logger) *SuretyService {
	return &SuretyService{ledger: l, journal: j, log: log}
}

// Ledger exposes the core for read-only calls.
func (s *SuretyService) Ledger() *ledger.Ledger {
	return s.ledger
}

func (s *SuretyService) record(ctx context.Context, op string, actor domain.Account, entityKey string, amount int64) {
	e := domain.JournalEntry{
		ID:        uuid.NewString(),
		Op:        op,
		Actor:     actor,
		EntityKey: entityKey,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.journal.Append(ctx, e); err != nil {
		s.log.WithError(err).WithField("op", op).Warn("journal append failed")
	}
}

func flightEntityKey(key domain.FlightKey) string {
	return fmt.Sprintf("%s/%s/%d", key.Airline, key.Flight, key.Timestamp)
}

func (s *SuretyService) SetOperational(ctx context.Context, caller domain.Account, operational bool) error {
	if err := s.ledger.SetOperational(caller, operational); err != nil {
		return err
	}
	amount := int64(0)
	if operational {
		amount = 1
	}
	s.record(ctx, "set_operational", caller, "system", amount)
	return nil
}

func (s *SuretyService) AuthorizeCaller(ctx context.Context, caller, account domain.Account) error {
	if err := s.ledger.AuthorizeCaller(caller, account); err != nil {
		return err
	}
	s.record(ctx, "authorize_caller", caller, string(account), 0)
	return nil
}

func (s *SuretyService) DeauthorizeCaller(ctx context.Context, caller, account domain.Account) error {
	if err := s.ledger.DeauthorizeCaller(caller, account); err != nil {
		return err
	}
	s.record(ctx, "deauthorize_caller", caller, string(account), 0)
	return nil
}

func (s *SuretyService) RegisterAirline(ctx context.Context, name string, candidate, sponsor domain.Account) (ledger.RegisterResult, error) {
	res, err := s.ledger.RegisterAirline(name, candidate, sponsor)
	if err != nil {
		return res, err
	}
	s.record(ctx, "register_airline", sponsor, string(candidate), int64(res.Votes))
	if res.Admitted {
		s.log.WithFields(logrus.Fields{"airline": candidate, "sponsor": sponsor}).Info("airline admitted")
	}
	return res, nil
}

func (s *SuretyService) Fund(ctx context.Context, airline domain.Account, amount int64) (*domain.Airline, error) {
	a, err := s.ledger.Fund(airline, amount)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "fund", airline, string(airline), amount)
	return a, nil
}

func (s *SuretyService) Buy(ctx context.Context, key domain.FlightKey, passenger domain.Account, premium int64) (*domain.Policy, error) {
	p, err := s.ledger.Buy(key, passenger, premium)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "buy", passenger, flightEntityKey(key), premium)
	return p, nil
}

func (s *SuretyService) Pay(ctx context.Context, passenger domain.Account) (int64, error) {
	amount, err := s.ledger.Pay(passenger)
	if err != nil {
		return 0, err
	}
	s.record(ctx, "pay", passenger, string(passenger), amount)
	return amount, nil
}

func (s *SuretyService) RegisterOracle(ctx context.Context, account domain.Account, fee int64) (*domain.OracleRegistration, error) {
	reg, err := s.ledger.RegisterOracle(account, fee)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "register_oracle", account, string(account), fee)
	return reg, nil
}

func (s *SuretyService) FetchFlightStatus(ctx context.Context, requester domain.Account, key domain.FlightKey) (int, error) {
	index, err := s.ledger.FetchFlightStatus(requester, key)
	if err != nil {
		return 0, err
	}
	s.record(ctx, "fetch_flight_status", requester, flightEntityKey(key), int64(index))
	return index, nil
}

// SubmitOracleResponse forwards the oracle's report. The ledger credits the
// matching policies inside the same atomic call that resolves the request, so
// nothing can interleave between quorum and payout; this layer only journals
// and logs the outcome.
func (s *SuretyService) SubmitOracleResponse(ctx context.Context, oracle domain.Account, index int, key domain.FlightKey, status domain.StatusCode) (ledger.Resolution, error) {
	res, err := s.ledger.SubmitOracleResponse(oracle, index, key, status)
	if err != nil {
		return res, err
	}
	s.record(ctx, "submit_oracle_response", oracle, flightEntityKey(key), int64(status))
	if res.Resolved {
		s.log.WithFields(logrus.Fields{
			"airline": key.Airline,
			"flight":  key.Flight,
			"status":  res.Status,
		}).Info("flight status finalized")
		if res.Credited > 0 {
			s.record(ctx, "credit_insurees", Identity, flightEntityKey(key), int64(res.Credited))
		}
	}
	return res, nil
}

// JournalByActor returns the actor's committed mutation history, newest first.
func (s *SuretyService) JournalByActor(ctx context.Context, actor domain.Account) ([]domain.JournalEntry, error) {
	return s.journal.EntriesByActor(ctx, actor)
}

// CreditInsurees lets an externally authorized caller credit a flight directly,
// outside the oracle path.
func (s *SuretyService) CreditInsurees(ctx context.Context, caller domain.Account, key domain.FlightKey, status domain.StatusCode) (int, error) {
	credited, err := s.ledger.CreditInsurees(caller, key, status)
	if err != nil {
		return 0, err
	}
	if credited > 0 {
		s.record(ctx, "credit_insurees", caller, flightEntityKey(key), int64(credited))
	}
	return credited, nil
}
