package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

// Buy creates or tops up the passenger's policy on the flight. The premium cap
// applies to the cumulative premium for the policy, so repeat purchases that
// would push it past the cap fail with no debit and no policy change. The
// airline must be registered and funded.
func (l *Ledger) Buy(key domain.FlightKey, passenger domain.Account, premium int64) (*domain.Policy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return nil, ErrNotOperational
	}
	if premium <= 0 {
		return nil, ErrInvalidAmount
	}
	a, ok := l.airlines[key.Airline]
	if !ok {
		return nil, ErrAirlineNotFound
	}
	if !a.IsFunded {
		return nil, ErrAirlineNotFunded
	}

	book := l.policies[key]
	if book == nil {
		book = make(map[domain.Account]*domain.Policy)
		l.policies[key] = book
	}
	p := book[passenger]
	if p == nil {
		p = &domain.Policy{Passenger: passenger}
		book[passenger] = p
	}
	if p.PremiumPaid+premium > l.params.MaxPremium {
		return nil, ErrPremiumExceeded
	}
	p.PremiumPaid += premium
	snapshot := *p
	return &snapshot, nil
}

// CreditInsurees credits every uncredited policy on the flight with
// premium * multiplier, provided the status is one the airline is liable for.
// Restricted to authorized callers; the oracle path credits implicitly when a
// request resolves. Safe to repeat: already-credited policies are skipped, so
// a second invocation changes nothing.
func (l *Ledger) CreditInsurees(caller domain.Account, key domain.FlightKey, status domain.StatusCode) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return 0, ErrNotOperational
	}
	if !l.authorized[caller] {
		return 0, ErrUnauthorized
	}
	if !status.AirlineFault() {
		return 0, nil
	}
	return l.creditLocked(key), nil
}

// creditLocked credits the flight's uncredited policies. Callers hold l.mu and
// have established that the status is airline-fault.
func (l *Ledger) creditLocked(key domain.FlightKey) int {
	credited := 0
	for _, p := range l.policies[key] {
		if p.IsCredited {
			continue
		}
		p.CreditOwed = decimal.NewFromInt(p.PremiumPaid).Mul(l.params.PayoutMultiplier).IntPart()
		p.IsCredited = true
		l.balances[p.Passenger] += p.CreditOwed
		credited++
	}
	return credited
}

// Pay withdraws the passenger's entire balance. The balance is zeroed before
// the amount is handed back to the caller for transfer, so a re-entrant second
// withdrawal observes nothing left to take.
func (l *Ledger) Pay(passenger domain.Account) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return 0, ErrNotOperational
	}
	amount := l.balances[passenger]
	if amount == 0 {
		return 0, ErrInsufficientBalance
	}
	l.balances[passenger] = 0
	return amount, nil
}

// Balance returns the passenger's withdrawable balance.
func (l *Ledger) Balance(passenger domain.Account) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[passenger]
}

// PolicyInfo returns a snapshot of the passenger's policy on the flight.
func (l *Ledger) PolicyInfo(key domain.FlightKey, passenger domain.Account) (domain.Policy, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.policies[key][passenger]
	if !ok {
		return domain.Policy{}, false
	}
	return *p, true
}
