package circulation

// PatronCategory is the fixed set of borrower profiles.
type PatronCategory string

const (
	PatronCategoryStudent    PatronCategory = "student"
	PatronCategoryFaculty    PatronCategory = "faculty"
	PatronCategoryResearcher PatronCategory = "researcher"
	PatronCategoryStaff      PatronCategory = "staff"
)

// IsValid reports whether c is one of the known patron categories.
func (c PatronCategory) IsValid() bool {
	switch c {
	case PatronCategoryStudent, PatronCategoryFaculty, PatronCategoryResearcher, PatronCategoryStaff:
		return true
	default:
		return false
	}
}

// Patron is a registered borrower, keyed by a unique person identifier
// (national id style, supplied by the caller). A patron can only be deleted
// while no loan references them.
type Patron struct {
	ID       string
	Name     string
	Email    string
	Address  string
	Phone    string
	Category PatronCategory
}
