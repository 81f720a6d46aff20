package domain

import "time"

// Account is an opaque caller identity. Airlines, passengers and oracles are all
// keyed by it; the same value may act in more than one role.
type Account string

// Unit is the number of base currency units in one native unit. All amounts in
// the system are int64 counts of base units.
const Unit int64 = 1_000_000_000

// StatusCode is the reported real-world state of a flight.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// AirlineFault reports whether the status obligates the airline to pay out.
func (s StatusCode) AirlineFault() bool {
	return s == StatusLateAirline
}

// Valid reports whether s is one of the defined status codes.
func (s StatusCode) Valid() bool {
	switch s {
	case StatusUnknown, StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther:
		return true
	}
	return false
}

// FlightKey identifies one flight occurrence.
type FlightKey struct {
	Airline   Account `json:"airline"`
	Flight    string  `json:"flight"`
	Timestamp int64   `json:"timestamp"`
}

// Airline is a membership record. Registration is append-only; the funded flag
// flips true exactly once, when cumulative funding crosses the threshold.
type Airline struct {
	Account      Account `json:"account"`
	Name         string  `json:"name"`
	IsRegistered bool    `json:"is_registered"`
	IsFunded     bool    `json:"is_funded"`
	FundedAmount int64   `json:"funded_amount"`
}

// Policy is one passenger's insurance position against one flight occurrence.
// The record survives withdrawal for audit.
type Policy struct {
	Passenger   Account `json:"passenger"`
	PremiumPaid int64   `json:"premium_paid"`
	CreditOwed  int64   `json:"credit_owed"`
	IsCredited  bool    `json:"is_credited"`
}

// OracleRegistration is immutable once created.
type OracleRegistration struct {
	Account Account `json:"account"`
	Indexes [3]int  `json:"indexes"`
}

// StatusRequestView is a read-only snapshot of a status request.
type StatusRequestView struct {
	Index      int        `json:"index"`
	Key        FlightKey  `json:"key"`
	IsResolved bool       `json:"is_resolved"`
	Status     StatusCode `json:"status"`
}

// JournalEntry is one committed core mutation, appended to the audit store.
type JournalEntry struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Actor     Account   `json:"actor"`
	EntityKey string    `json:"entity_key"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
