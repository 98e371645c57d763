package circulation

import (
	"github.com/google/uuid"
)

// ItemState is the availability state of one physical copy.
type ItemState string

const (
	ItemStateAvailable   ItemState = "available"
	ItemStateOnLoan      ItemState = "on_loan"
	ItemStateUnderRepair ItemState = "under_repair"
	ItemStateLost        ItemState = "lost"
	ItemStateRetired     ItemState = "retired"
)

// IsValid reports whether s is one of the known item states.
func (s ItemState) IsValid() bool {
	switch s {
	case ItemStateAvailable, ItemStateOnLoan, ItemStateUnderRepair, ItemStateLost, ItemStateRetired:
		return true
	default:
		return false
	}
}

// ExternallyAssignable reports whether a caller may write this state
// directly through the inventory operations. Transitions into and out of
// on_loan are reserved for IssueLoan and ReturnLoan so that item state and
// open loans cannot drift apart.
func (s ItemState) ExternallyAssignable() bool {
	return s.IsValid() && s != ItemStateOnLoan
}

// ItemCondition is the physical condition of a copy.
type ItemCondition string

const (
	ItemConditionExcellent ItemCondition = "excellent"
	ItemConditionGood      ItemCondition = "good"
	ItemConditionFair      ItemCondition = "fair"
	ItemConditionPoor      ItemCondition = "poor"
)

// IsValid reports whether c is one of the known item conditions.
func (c ItemCondition) IsValid() bool {
	switch c {
	case ItemConditionExcellent, ItemConditionGood, ItemConditionFair, ItemConditionPoor:
		return true
	default:
		return false
	}
}

// Item is one physical, individually trackable copy of a Book, identified
// internally by a UUID and externally by a unique barcode. An item can only
// be deleted while it has no loan history and is not on loan.
type Item struct {
	ID        uuid.UUID
	BookISBN  string
	Barcode   string
	State     ItemState
	Location  string
	Condition ItemCondition
}
