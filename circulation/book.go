package circulation

// Book is a catalog entry, keyed by its ISBN. The identity is immutable;
// the descriptive fields can be updated. A book can only be deleted while no
// item references it.
type Book struct {
	ISBN      string
	Title     string
	Author    string
	Publisher string
	Year      int
	Category  string
	Language  string
	Pages     int
}
