package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

const (
	owner        = domain.Account("owner")
	firstAirline = domain.Account("airline-1")
	governance   = domain.Account("governance")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New(owner, "AirFirst", firstAirline, DefaultParams())
	require.NoError(t, l.AuthorizeCaller(owner, governance))
	return l
}

func fund(t *testing.T, l *Ledger, airline domain.Account) {
	t.Helper()
	a, err := l.Fund(airline, 10*domain.Unit)
	require.NoError(t, err)
	require.True(t, a.IsFunded)
}

func TestOperationalSwitch(t *testing.T) {
	l := newTestLedger(t)
	require.True(t, l.IsOperational())

	require.ErrorIs(t, l.SetOperational("mallory", false), ErrNotOwner)
	require.True(t, l.IsOperational())

	require.NoError(t, l.SetOperational(owner, false))
	require.False(t, l.IsOperational())

	// Every mutating entry point is gated while paused.
	_, err := l.Fund(firstAirline, domain.Unit)
	require.ErrorIs(t, err, ErrNotOperational)
	_, err = l.RegisterAirline("Nope", "airline-2", firstAirline)
	require.ErrorIs(t, err, ErrNotOperational)
	_, err = l.Buy(domain.FlightKey{Airline: firstAirline, Flight: "F1"}, "pax", domain.Unit)
	require.ErrorIs(t, err, ErrNotOperational)
	_, err = l.Pay("pax")
	require.ErrorIs(t, err, ErrNotOperational)
	_, err = l.RegisterOracle("oracle-1", domain.Unit)
	require.ErrorIs(t, err, ErrNotOperational)
	_, err = l.CreditInsurees(governance, domain.FlightKey{}, domain.StatusLateAirline)
	require.ErrorIs(t, err, ErrNotOperational)

	// The owner always has the path back to enabled.
	require.NoError(t, l.SetOperational(owner, true))
	require.True(t, l.IsOperational())
}

func TestRegisterAirlineRequiresFundedSponsor(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.RegisterAirline("Air2", "airline-2", firstAirline)
	require.ErrorIs(t, err, ErrAirlineNotFunded)
	require.False(t, l.IsAirline("airline-2"))

	_, err = l.RegisterAirline("Air2", "airline-2", "stranger")
	require.ErrorIs(t, err, ErrAirlineNotFound)

	fund(t, l, firstAirline)
	res, err := l.RegisterAirline("Air2", "airline-2", firstAirline)
	require.NoError(t, err)
	require.True(t, res.Admitted)
	require.True(t, l.IsAirline("airline-2"))
}

func TestFifthAirlineRequiresConsensus(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)

	// Airlines 2-4 are admitted outright by a single funded sponsor.
	for i := 2; i <= 4; i++ {
		candidate := domain.Account(fmt.Sprintf("airline-%d", i))
		res, err := l.RegisterAirline(fmt.Sprintf("Air%d", i), candidate, firstAirline)
		require.NoError(t, err)
		require.True(t, res.Admitted)
	}

	// With 4 registered, the fifth needs ceil(4/2) = 2 distinct funded voters.
	res, err := l.RegisterAirline("Air5", "airline-5", firstAirline)
	require.NoError(t, err)
	require.False(t, res.Admitted)
	require.Equal(t, 1, res.Votes)
	require.Equal(t, 2, res.Required)
	require.False(t, l.IsAirline("airline-5"))

	// A repeat vote from the same sponsor does not double-count.
	res, err = l.RegisterAirline("Air5", "airline-5", firstAirline)
	require.NoError(t, err)
	require.False(t, res.Admitted)
	require.Equal(t, 1, res.Votes)

	// An unfunded airline cannot vote.
	_, err = l.RegisterAirline("Air5", "airline-5", "airline-2")
	require.ErrorIs(t, err, ErrAirlineNotFunded)

	fund(t, l, "airline-2")
	res, err = l.RegisterAirline("Air5", "airline-5", "airline-2")
	require.NoError(t, err)
	require.True(t, res.Admitted)
	require.Equal(t, 2, res.Votes)
	require.True(t, l.IsAirline("airline-5"))
}

func TestReRegisterIsNoOpSuccess(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)

	res, err := l.RegisterAirline("AirFirst", firstAirline, firstAirline)
	require.NoError(t, err)
	require.True(t, res.Admitted)

	a, ok := l.AirlineInfo(firstAirline)
	require.True(t, ok)
	require.Equal(t, "AirFirst", a.Name)
	require.True(t, a.IsFunded)
}

func TestFundingIsMonotone(t *testing.T) {
	l := newTestLedger(t)

	a, err := l.Fund(firstAirline, 4*domain.Unit)
	require.NoError(t, err)
	require.False(t, a.IsFunded)
	require.False(t, l.IsAirlineOperational(firstAirline))

	a, err = l.Fund(firstAirline, 6*domain.Unit)
	require.NoError(t, err)
	require.True(t, a.IsFunded)
	require.True(t, l.IsAirlineOperational(firstAirline))

	// Funding more never flips the flag back.
	a, err = l.Fund(firstAirline, 1)
	require.NoError(t, err)
	require.True(t, a.IsFunded)
	require.Equal(t, 10*domain.Unit+1, a.FundedAmount)

	_, err = l.Fund(firstAirline, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Fund("stranger", domain.Unit)
	require.ErrorIs(t, err, ErrAirlineNotFound)
}

func TestBuyEnforcesCumulativePremiumCap(t *testing.T) {
	l := newTestLedger(t)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	// The airline must be registered and funded.
	_, err := l.Buy(key, "pax-1", domain.Unit)
	require.ErrorIs(t, err, ErrAirlineNotFunded)
	fund(t, l, firstAirline)
	_, err = l.Buy(domain.FlightKey{Airline: "ghost", Flight: "X"}, "pax-1", domain.Unit)
	require.ErrorIs(t, err, ErrAirlineNotFound)

	// A purchase of exactly the cap succeeds.
	p, err := l.Buy(key, "pax-1", domain.Unit)
	require.NoError(t, err)
	require.Equal(t, domain.Unit, p.PremiumPaid)

	// Above the cap fails with no policy change.
	_, err = l.Buy(key, "pax-1", 1)
	require.ErrorIs(t, err, ErrPremiumExceeded)
	p2, ok := l.PolicyInfo(key, "pax-1")
	require.True(t, ok)
	require.Equal(t, domain.Unit, p2.PremiumPaid)

	// The cap is cumulative across purchases, not per call.
	_, err = l.Buy(key, "pax-2", domain.Unit/2)
	require.NoError(t, err)
	p, err = l.Buy(key, "pax-2", domain.Unit/2)
	require.NoError(t, err)
	require.Equal(t, domain.Unit, p.PremiumPaid)
	_, err = l.Buy(key, "pax-2", 1)
	require.ErrorIs(t, err, ErrPremiumExceeded)

	_, err = l.Buy(key, "pax-3", 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditInsurees(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	_, err := l.Buy(key, "pax-1", domain.Unit)
	require.NoError(t, err)
	_, err = l.Buy(key, "pax-2", domain.Unit/2)
	require.NoError(t, err)

	// Only authorized callers may credit.
	_, err = l.CreditInsurees("mallory", key, domain.StatusLateAirline)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, l.Balance("pax-1"))

	// A status the airline is not liable for credits nothing.
	credited, err := l.CreditInsurees(governance, key, domain.StatusLateWeather)
	require.NoError(t, err)
	require.Zero(t, credited)

	credited, err = l.CreditInsurees(governance, key, domain.StatusLateAirline)
	require.NoError(t, err)
	require.Equal(t, 2, credited)
	require.Equal(t, 3*domain.Unit/2, l.Balance("pax-1"))
	require.Equal(t, 3*domain.Unit/4, l.Balance("pax-2"))

	p, ok := l.PolicyInfo(key, "pax-1")
	require.True(t, ok)
	require.True(t, p.IsCredited)
	require.Equal(t, 3*domain.Unit/2, p.CreditOwed)

	// Idempotent: the second invocation changes nothing.
	credited, err = l.CreditInsurees(governance, key, domain.StatusLateAirline)
	require.NoError(t, err)
	require.Zero(t, credited)
	require.Equal(t, 3*domain.Unit/2, l.Balance("pax-1"))
}

func TestPayZeroesBalanceBeforeTransfer(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	_, err := l.Buy(key, "pax-1", domain.Unit)
	require.NoError(t, err)
	_, err = l.CreditInsurees(governance, key, domain.StatusLateAirline)
	require.NoError(t, err)

	amount, err := l.Pay("pax-1")
	require.NoError(t, err)
	require.Equal(t, 3*domain.Unit/2, amount)
	require.Zero(t, l.Balance("pax-1"))

	// An immediate second withdrawal finds nothing left.
	_, err = l.Pay("pax-1")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = l.Pay("never-bought")
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestOracleRegistration(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.RegisterOracle("oracle-1", domain.Unit-1)
	require.ErrorIs(t, err, ErrFeeTooLow)

	reg, err := l.RegisterOracle("oracle-1", domain.Unit)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, idx := range reg.Indexes {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, indexRange)
		require.False(t, seen[idx], "indexes must be distinct")
		seen[idx] = true
	}

	_, err = l.RegisterOracle("oracle-1", domain.Unit)
	require.ErrorIs(t, err, ErrOracleExists)

	indexes, err := l.MyIndexes("oracle-1")
	require.NoError(t, err)
	require.Equal(t, reg.Indexes, indexes)

	_, err = l.MyIndexes("oracle-2")
	require.ErrorIs(t, err, ErrOracleNotFound)
}

func TestIndexAssignmentIsReproducible(t *testing.T) {
	a := assignIndexes("oracle-1", 7)
	b := assignIndexes("oracle-1", 7)
	require.Equal(t, a, b, "same account and nonce must yield the same indexes")

	// Two ledgers registering the same accounts in the same order agree.
	l1 := newTestLedger(t)
	l2 := newTestLedger(t)
	for i := 0; i < 5; i++ {
		acct := domain.Account(fmt.Sprintf("oracle-%d", i))
		r1, err := l1.RegisterOracle(acct, domain.Unit)
		require.NoError(t, err)
		r2, err := l2.RegisterOracle(acct, domain.Unit)
		require.NoError(t, err)
		require.Equal(t, r1.Indexes, r2.Indexes)
	}
}

// registerOraclesHoldingIndex registers oracles until n of them hold index,
// returning their accounts.
func registerOraclesHoldingIndex(t *testing.T, l *Ledger, index, n int) []domain.Account {
	t.Helper()
	var holders []domain.Account
	for i := 0; len(holders) < n; i++ {
		require.Less(t, i, 500, "could not find enough oracles holding index %d", index)
		acct := domain.Account(fmt.Sprintf("oracle-%d", i))
		reg, err := l.RegisterOracle(acct, domain.Unit)
		require.NoError(t, err)
		for _, idx := range reg.Indexes {
			if idx == index {
				holders = append(holders, acct)
				break
			}
		}
	}
	return holders
}

func TestOracleConsensusResolvesOnPerStatusQuorum(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	index, err := l.FetchFlightStatus("pax-1", key)
	require.NoError(t, err)
	holders := registerOraclesHoldingIndex(t, l, index, 5)

	// 2 report on-time, 2 report late-airline: split across buckets, no quorum.
	for _, o := range holders[:2] {
		res, err := l.SubmitOracleResponse(o, index, key, domain.StatusOnTime)
		require.NoError(t, err)
		require.False(t, res.Resolved)
	}
	for _, o := range holders[2:4] {
		res, err := l.SubmitOracleResponse(o, index, key, domain.StatusLateAirline)
		require.NoError(t, err)
		require.False(t, res.Resolved)
	}
	_, ok := l.FlightStatus(key)
	require.False(t, ok)

	// A repeated response from the same oracle does not advance the bucket.
	res, err := l.SubmitOracleResponse(holders[2], index, key, domain.StatusLateAirline)
	require.NoError(t, err)
	require.False(t, res.Resolved)

	// The third distinct late-airline response reaches quorum and resolves.
	res, err = l.SubmitOracleResponse(holders[4], index, key, domain.StatusLateAirline)
	require.NoError(t, err)
	require.True(t, res.Resolved)
	require.Equal(t, domain.StatusLateAirline, res.Status)

	status, ok := l.FlightStatus(key)
	require.True(t, ok)
	require.Equal(t, domain.StatusLateAirline, status)

	// Further responses are accepted but never flip the outcome.
	res, err = l.SubmitOracleResponse(holders[0], index, key, domain.StatusOnTime)
	require.NoError(t, err)
	require.False(t, res.Resolved)
	require.Equal(t, domain.StatusLateAirline, res.Status)
	status, _ = l.FlightStatus(key)
	require.Equal(t, domain.StatusLateAirline, status)
}

// TestResolutionCreditsInTheResolvingCall pins the payout to the same atomic
// call that closes the request: even if the system is paused immediately
// afterward, the credit has already committed.
func TestResolutionCreditsInTheResolvingCall(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	_, err := l.Buy(key, "pax-1", domain.Unit)
	require.NoError(t, err)
	index, err := l.FetchFlightStatus("pax-1", key)
	require.NoError(t, err)
	holders := registerOraclesHoldingIndex(t, l, index, 3)

	var res Resolution
	for _, o := range holders {
		res, err = l.SubmitOracleResponse(o, index, key, domain.StatusLateAirline)
		require.NoError(t, err)
	}
	require.True(t, res.Resolved)
	require.Equal(t, 1, res.Credited)

	// Pausing right after resolution cannot un-credit or strand the payout.
	require.NoError(t, l.SetOperational(owner, false))
	p, ok := l.PolicyInfo(key, "pax-1")
	require.True(t, ok)
	require.True(t, p.IsCredited)
	require.Equal(t, 3*domain.Unit/2, l.Balance("pax-1"))
}

func TestSubmitOracleResponseValidation(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	index, err := l.FetchFlightStatus("pax-1", key)
	require.NoError(t, err)

	_, err = l.SubmitOracleResponse("ghost", index, key, domain.StatusOnTime)
	require.ErrorIs(t, err, ErrOracleNotFound)

	reg, err := l.RegisterOracle("oracle-1", domain.Unit)
	require.NoError(t, err)

	_, err = l.SubmitOracleResponse("oracle-1", reg.Indexes[0], key, 99)
	require.ErrorIs(t, err, ErrInvalidStatus)

	wrong := -1
	for i := 0; i < indexRange; i++ {
		if i != reg.Indexes[0] && i != reg.Indexes[1] && i != reg.Indexes[2] {
			wrong = i
			break
		}
	}
	_, err = l.SubmitOracleResponse("oracle-1", wrong, key, domain.StatusOnTime)
	require.ErrorIs(t, err, ErrIndexNotHeld)

	_, err = l.SubmitOracleResponse("oracle-1", reg.Indexes[0], domain.FlightKey{Airline: firstAirline, Flight: "other"}, domain.StatusOnTime)
	require.ErrorIs(t, err, ErrNoOpenRequest)
}

func TestFetchFlightStatusReusesOpenRequest(t *testing.T) {
	l := newTestLedger(t)
	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}

	for i := 0; i < 20; i++ {
		_, err := l.FetchFlightStatus("pax-1", key)
		require.NoError(t, err)
	}
	// At most one open request per index bucket for the same flight.
	require.LessOrEqual(t, len(l.OpenRequests()), indexRange)
}

// TestSolvencyInvariant checks that outstanding passenger balances never
// exceed collected premiums plus the airlines' staked subsidy.
func TestSolvencyInvariant(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)

	var premiums int64
	for i := 0; i < 8; i++ {
		key := domain.FlightKey{Airline: firstAirline, Flight: fmt.Sprintf("SU-%d", i), Timestamp: 1700000000}
		pax := domain.Account(fmt.Sprintf("pax-%d", i))
		premium := domain.Unit / int64(i+1)
		_, err := l.Buy(key, pax, premium)
		require.NoError(t, err)
		premiums += premium
		if i%2 == 0 {
			_, err = l.CreditInsurees(governance, key, domain.StatusLateAirline)
			require.NoError(t, err)
		}
	}

	l.mu.Lock()
	var outstanding int64
	for _, b := range l.balances {
		outstanding += b
	}
	var subsidy int64
	for _, a := range l.airlines {
		subsidy += a.FundedAmount
	}
	l.mu.Unlock()
	require.LessOrEqual(t, outstanding, premiums+subsidy)
}

// TestEndToEndScenario walks the whole lifecycle: membership growth through
// consensus, a policy purchase, an oracle-finalized delay and the payout.
func TestEndToEndScenario(t *testing.T) {
	l := newTestLedger(t)
	fund(t, l, firstAirline)

	for i := 2; i <= 4; i++ {
		res, err := l.RegisterAirline(fmt.Sprintf("Air%d", i), domain.Account(fmt.Sprintf("airline-%d", i)), firstAirline)
		require.NoError(t, err)
		require.True(t, res.Admitted)
	}
	res, err := l.RegisterAirline("Air5", "airline-5", firstAirline)
	require.NoError(t, err)
	require.False(t, res.Admitted)
	fund(t, l, "airline-2")
	res, err = l.RegisterAirline("Air5", "airline-5", "airline-2")
	require.NoError(t, err)
	require.True(t, res.Admitted)

	key := domain.FlightKey{Airline: firstAirline, Flight: "SU-101", Timestamp: 1700000000}
	_, err = l.Buy(key, "pax-1", domain.Unit)
	require.NoError(t, err)

	index, err := l.FetchFlightStatus("pax-1", key)
	require.NoError(t, err)
	holders := registerOraclesHoldingIndex(t, l, index, 3)
	var resolution Resolution
	for _, o := range holders {
		resolution, err = l.SubmitOracleResponse(o, index, key, domain.StatusLateAirline)
		require.NoError(t, err)
	}
	require.True(t, resolution.Resolved)
	require.Equal(t, 1, resolution.Credited)
	require.Equal(t, 3*domain.Unit/2, l.Balance("pax-1"))

	// A follow-up direct credit finds nothing left to do.
	credited, err := l.CreditInsurees(governance, key, resolution.Status)
	require.NoError(t, err)
	require.Zero(t, credited)

	amount, err := l.Pay("pax-1")
	require.NoError(t, err)
	require.Equal(t, 3*domain.Unit/2, amount)
	require.Zero(t, l.Balance("pax-1"))
}
