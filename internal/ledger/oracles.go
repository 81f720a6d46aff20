package ledger

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

// indexRange bounds the oracle index buckets: every index is in [0, indexRange).
const indexRange = 10

// seededRand returns a PRNG seeded from fnv64a(account bytes || big-endian
// nonce). The formula is fixed so assignments are reproducible in tests while
// still unpredictable without knowing the ledger's internal nonce.
func seededRand(account domain.Account, nonce uint64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(account))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func assignIndexes(account domain.Account, nonce uint64) [3]int {
	perm := seededRand(account, nonce).Perm(indexRange)
	return [3]int{perm[0], perm[1], perm[2]}
}

// RegisterOracle registers the account as an oracle and assigns it three
// distinct index buckets. The fee must meet the fixed registration fee and an
// account registers at most once.
func (l *Ledger) RegisterOracle(account domain.Account, fee int64) (*domain.OracleRegistration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return nil, ErrNotOperational
	}
	if fee < l.params.OracleFee {
		return nil, ErrFeeTooLow
	}
	if _, ok := l.oracles[account]; ok {
		return nil, ErrOracleExists
	}
	l.oracleNonce++
	reg := &domain.OracleRegistration{
		Account: account,
		Indexes: assignIndexes(account, l.oracleNonce),
	}
	l.oracles[account] = reg
	snapshot := *reg
	return &snapshot, nil
}

// MyIndexes returns the oracle's assigned index buckets.
func (l *Ledger) MyIndexes(account domain.Account) ([3]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	reg, ok := l.oracles[account]
	if !ok {
		return [3]int{}, ErrOracleNotFound
	}
	return reg.Indexes, nil
}

// FetchFlightStatus opens a status request for the flight at a pseudo-randomly
// chosen index bucket, or reuses the request already open there. The call
// returns immediately; resolution happens through later SubmitOracleResponse
// calls. A request that already resolved stays resolved.
func (l *Ledger) FetchFlightStatus(requester domain.Account, key domain.FlightKey) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return 0, ErrNotOperational
	}
	l.fetchNonce++
	index := seededRand(requester, l.fetchNonce).Intn(indexRange)
	rk := requestKey{Index: index, Key: key}
	if _, ok := l.requests[rk]; !ok {
		l.requests[rk] = &statusRequest{
			responses: make(map[domain.StatusCode]map[domain.Account]bool),
		}
	}
	return index, nil
}

// Resolution reports what a SubmitOracleResponse call did to the request.
type Resolution struct {
	// Resolved is true only on the call whose response closed the request.
	Resolved bool `json:"resolved"`
	// Status is the final status, set once the request is resolved.
	Status domain.StatusCode `json:"status"`
	// Credited counts the policies credited by the resolving call.
	Credited int `json:"credited"`
}

// SubmitOracleResponse records the oracle's report in the request's bucket for
// that status code. Responses are counted per status code; when one code alone
// accumulates quorum the request resolves to it, once. Responses after
// resolution are accepted and ignored, and a repeated (oracle, status) pair
// does not double-count.
func (l *Ledger) SubmitOracleResponse(oracle domain.Account, index int, key domain.FlightKey, status domain.StatusCode) (Resolution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.operational {
		return Resolution{}, ErrNotOperational
	}
	if !status.Valid() {
		return Resolution{}, ErrInvalidStatus
	}
	reg, ok := l.oracles[oracle]
	if !ok {
		return Resolution{}, ErrOracleNotFound
	}
	if reg.Indexes[0] != index && reg.Indexes[1] != index && reg.Indexes[2] != index {
		return Resolution{}, ErrIndexNotHeld
	}
	req, ok := l.requests[requestKey{Index: index, Key: key}]
	if !ok {
		return Resolution{}, ErrNoOpenRequest
	}
	if req.isResolved {
		return Resolution{Status: req.status}, nil
	}

	responders := req.responses[status]
	if responders == nil {
		responders = make(map[domain.Account]bool)
		req.responses[status] = responders
	}
	responders[oracle] = true

	if len(responders) >= l.params.OracleQuorum {
		req.isResolved = true
		req.status = status
		l.finalStatus[key] = status
		// Crediting happens inside the resolving call, under the same lock,
		// so no other transaction can land between quorum and payout.
		credited := 0
		if status.AirlineFault() {
			credited = l.creditLocked(key)
		}
		return Resolution{Resolved: true, Status: status, Credited: credited}, nil
	}
	return Resolution{}, nil
}

// FlightStatus returns the finalized status for the flight, if any request on
// it has resolved.
func (l *Ledger) FlightStatus(key domain.FlightKey) (domain.StatusCode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status, ok := l.finalStatus[key]
	return status, ok
}

// OpenRequests lists status requests that have not resolved yet, in a stable
// order, for pollers such as the oracle harness.
func (l *Ledger) OpenRequests() []domain.StatusRequestView {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.StatusRequestView
	for rk, req := range l.requests {
		if req.isResolved {
			continue
		}
		out = append(out, domain.StatusRequestView{Index: rk.Index, Key: rk.Key})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Key.Airline != b.Key.Airline {
			return a.Key.Airline < b.Key.Airline
		}
		if a.Key.Flight != b.Key.Flight {
			return a.Key.Flight < b.Key.Flight
		}
		if a.Key.Timestamp != b.Key.Timestamp {
			return a.Key.Timestamp < b.Key.Timestamp
		}
		return a.Index < b.Index
	})
	return out
}
