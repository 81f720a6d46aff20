package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

// Params are the tunable economics of the ledger. Defaults match the historical
// deployment values; see config.Load for the env overrides.
type Params struct {
	FundingThreshold int64           // stake required before an airline may sponsor or vote
	MaxPremium       int64           // cumulative premium cap per policy
	PayoutMultiplier decimal.Decimal // credit = premium * multiplier
	OracleFee        int64           // one-time oracle registration fee
	OracleQuorum     int             // matching responses required to finalize a status
}

// DefaultParams returns the production defaults: 10-unit funding threshold,
// 1-unit premium cap, 1.5x payout, 1-unit oracle fee, quorum of 3.
func DefaultParams() Params {
	return Params{
		FundingThreshold: 10 * domain.Unit,
		MaxPremium:       domain.Unit,
		PayoutMultiplier: decimal.NewFromFloat(1.5),
		OracleFee:        domain.Unit,
		OracleQuorum:     3,
	}
}

type requestKey struct {
	Index int
	Key   domain.FlightKey
}

// statusRequest accumulates per-status responder sets until one status alone
// reaches quorum. Resolved is terminal.
type statusRequest struct {
	isResolved bool
	status     domain.StatusCode
	responses  map[domain.StatusCode]map[domain.Account]bool
}

// Ledger is the core state machine: airline registry, policy book, oracle
// consensus engine, operational switch and authorized-caller set. Every entry
// point runs under one mutex, so each call is a fully serialized atomic
// transaction: all preconditions are validated before the first write, and a
// failed call leaves state untouched.
type Ledger struct {
	mu     sync.Mutex
	params Params

	owner       domain.Account
	operational bool
	authorized  map[domain.Account]bool

	airlines        map[domain.Account]*domain.Airline
	registeredCount int
	candidacies     map[domain.Account]map[domain.Account]bool // candidate -> distinct voters

	policies map[domain.FlightKey]map[domain.Account]*domain.Policy
	balances map[domain.Account]int64

	oracles     map[domain.Account]*domain.OracleRegistration
	oracleNonce uint64
	fetchNonce  uint64
	requests    map[requestKey]*statusRequest
	finalStatus map[domain.FlightKey]domain.StatusCode
}

// New creates an operational ledger owned by owner, with the first airline
// already registered (unfunded). Membership is bootstrapped this way because
// RegisterAirline requires a funded sponsor and there is none yet.
func New(owner domain.Account, firstAirlineName string, firstAirline domain.Account, params Params) *Ledger {
	l := &Ledger{
		params:      params,
		owner:       owner,
		operational: true,
		authorized:  make(map[domain.Account]bool),
		airlines:    make(map[domain.Account]*domain.Airline),
		candidacies: make(map[domain.Account]map[domain.Account]bool),
		policies:    make(map[domain.FlightKey]map[domain.Account]*domain.Policy),
		balances:    make(map[domain.Account]int64),
		oracles:     make(map[domain.Account]*domain.OracleRegistration),
		requests:    make(map[requestKey]*statusRequest),
		finalStatus: make(map[domain.FlightKey]domain.StatusCode),
	}
	l.admit(firstAirlineName, firstAirline)
	return l
}

// IsOperational reports whether mutating entry points are enabled.
func (l *Ledger) IsOperational() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.operational
}

// SetOperational toggles the global switch. Owner only. Deliberately not gated
// on the switch itself, so the owner always has a path back to enabled.
func (l *Ledger) SetOperational(caller domain.Account, operational bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotOwner
	}
	l.operational = operational
	return nil
}

// AuthorizeCaller admits account to the set of callers permitted to invoke
// privileged cross-ledger operations such as CreditInsurees. Owner only.
func (l *Ledger) AuthorizeCaller(caller, account domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return ErrNotOperational
	}
	if caller != l.owner {
		return ErrNotOwner
	}
	l.authorized[account] = true
	return nil
}

// DeauthorizeCaller removes account from the privileged caller set. Owner only.
func (l *Ledger) DeauthorizeCaller(caller, account domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return ErrNotOperational
	}
	if caller != l.owner {
		return ErrNotOwner
	}
	delete(l.authorized, account)
	return nil
}

// IsAuthorized reports whether account may invoke privileged operations.
func (l *Ledger) IsAuthorized(account domain.Account) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.authorized[account]
}
