package ledger

import "github.com/punchamoorthee/suretyops/internal/domain"

// consensusFloor is the membership size up to which a single funded sponsor
// admits a candidate outright. From the fifth airline on, admission requires
// votes from half the registered membership.
const consensusFloor = 4

// RegisterResult reports the outcome of a RegisterAirline call.
type RegisterResult struct {
	Admitted bool `json:"admitted"`
	Votes    int  `json:"votes"`
	Required int  `json:"required"`
}

// RegisterAirline admits candidate directly while fewer than four airlines are
// registered, and otherwise records sponsor's vote toward the candidacy,
// admitting once distinct voters reach ceil(registered/2). The sponsor must be
// a funded airline. A vote repeated by the same sponsor does not double-count,
// and re-registering an existing airline is a no-op success.
func (l *Ledger) RegisterAirline(name string, candidate, sponsor domain.Account) (RegisterResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return RegisterResult{}, ErrNotOperational
	}
	sp, ok := l.airlines[sponsor]
	if !ok {
		return RegisterResult{}, ErrAirlineNotFound
	}
	if !sp.IsFunded {
		return RegisterResult{}, ErrAirlineNotFunded
	}
	if _, ok := l.airlines[candidate]; ok {
		return RegisterResult{Admitted: true}, nil
	}

	if l.registeredCount < consensusFloor {
		l.admit(name, candidate)
		return RegisterResult{Admitted: true, Votes: 1, Required: 1}, nil
	}

	voters := l.candidacies[candidate]
	if voters == nil {
		voters = make(map[domain.Account]bool)
		l.candidacies[candidate] = voters
	}
	voters[sponsor] = true

	// Quorum is evaluated against the registered count at the time of the
	// deciding vote, not a snapshot from when the candidacy opened.
	required := (l.registeredCount + 1) / 2
	if len(voters) >= required {
		l.admit(name, candidate)
		delete(l.candidacies, candidate)
		return RegisterResult{Admitted: true, Votes: len(voters), Required: required}, nil
	}
	return RegisterResult{Votes: len(voters), Required: required}, nil
}

func (l *Ledger) admit(name string, account domain.Account) {
	l.airlines[account] = &domain.Airline{
		Account:      account,
		Name:         name,
		IsRegistered: true,
	}
	l.registeredCount++
}

// Fund adds amount to the airline's stake. Crossing the funding threshold flips
// IsFunded true; the transition is one-way.
func (l *Ledger) Fund(airline domain.Account, amount int64) (*domain.Airline, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return nil, ErrNotOperational
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	a, ok := l.airlines[airline]
	if !ok {
		return nil, ErrAirlineNotFound
	}
	a.FundedAmount += amount
	if a.FundedAmount >= l.params.FundingThreshold {
		a.IsFunded = true
	}
	snapshot := *a
	return &snapshot, nil
}

// IsAirline reports whether account is a registered airline.
func (l *Ledger) IsAirline(account domain.Account) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.airlines[account]
	return ok
}

// IsAirlineOperational reports whether account is registered and funded.
func (l *Ledger) IsAirlineOperational(account domain.Account) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.airlines[account]
	return ok && a.IsFunded
}

// AirlineInfo returns a snapshot of the airline record.
func (l *Ledger) AirlineInfo(account domain.Account) (domain.Airline, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.airlines[account]
	if !ok {
		return domain.Airline{}, false
	}
	return *a, true
}
