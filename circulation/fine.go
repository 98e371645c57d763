package circulation

import (
	"time"

	"github.com/google/uuid"
)

// FineStatus is the settlement state of a fine. Payment processing is out of
// scope; only the amount bookkeeping lives here.
type FineStatus string

const (
	FineStatusPending FineStatus = "pending"
	FineStatusSettled FineStatus = "settled"
)

// Fine is a monetary penalty derived from overdue loan facts. LoanID is nil
// when the originating loan was hard-deleted by an administrative
// correction. Amounts are kept in cents so aggregation stays exact.
type Fine struct {
	ID          uuid.UUID
	PatronID    string
	LoanID      *uuid.UUID
	AmountCents int64
	IncurredAt  time.Time
	Status      FineStatus
}
