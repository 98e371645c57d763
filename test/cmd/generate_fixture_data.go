package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

const (
	NumBooks   = 50   // Number of catalog entries to be created - adapt these as needed
	NumItems   = 200  // Number of physical items to be created - adapt these as needed
	NumPatrons = 100  // Number of patrons to be created - adapt these as needed
	NumLoans   = 1000 // Number of loans (open and closed) to be created - adapt these as needed

	LoanDurationDays = 21  // due date offset applied to every generated loan
	DailyRateCents   = 100 // fine rate used when a generated return is overdue

	OutputDir    = "test/fixtures"    // the directory to put the fixture data into - should be fine as is
	OutputFile   = "circulation.sql"  // the file to put the fixture data into - should be fine as is
	ManifestFile = "circulation.json" // per-table row counts, handy for sanity checks in load tests
)

type BookRow struct {
	ISBN      string
	Title     string
	Author    string
	Publisher string
	Year      int
}

type ItemRow struct {
	ID        uuid.UUID
	ISBN      string
	Barcode   string
	State     string
	Location  string
	Condition string
}

type PatronRow struct {
	ID       string
	Name     string
	Category string
	Email    string
}

type LoanRow struct {
	ID         uuid.UUID
	ItemID     uuid.UUID
	PatronID   string
	IssuedAt   time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
}

type FineRow struct {
	ID         uuid.UUID
	PatronID   string
	LoanID     uuid.UUID
	Amount     int64
	Status     string
	IncurredAt time.Time
}

type Manifest struct {
	Books        int   `json:"books"`
	Items        int   `json:"items"`
	Patrons      int   `json:"patrons"`
	Loans        int   `json:"loans"`
	OpenLoans    int   `json:"open_loans"`
	Fines        int   `json:"fines"`
	PendingCents int64 `json:"pending_fine_cents"`
}

func main() {
	if err := GenerateFixtureDataSQL(); err != nil {
		panic(fmt.Sprintf("Error generating fixture data: %v\n", err))
	}
}

func GenerateFixtureDataSQL() error {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	outputDir := filepath.Join(projectRoot, OutputDir)

	fakeClock := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	books := generateBooks(NumBooks)
	items := generateItems(NumItems, books)
	patrons := generatePatrons(NumPatrons)
	loans, fines := generateLoans(NumLoans, items, patrons, &fakeClock)

	if err = writeSQLToFile(books, items, patrons, loans, fines, outputDir); err != nil {
		return err
	}

	return writeManifest(books, items, patrons, loans, fines, outputDir)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find project root (no go.mod found)")
}

func generateBooks(numBooks int) []BookRow {
	// Sample catalog data, cycled with a unique ISBN suffix per row
	seeds := []struct {
		Title     string
		Author    string
		Publisher string
		Year      int
	}{
		{"Learning Domain-Driven Design", "Vlad Khononov", "O'Reilly Media, Inc.", 2021},
		{"Domain-Driven Design", "Eric Evans", "Addison-Wesley", 2003},
		{"Microservices Patterns", "Chris Richardson", "Manning Publications", 2018},
		{"Building Microservices", "Sam Newman", "O'Reilly Media", 2015},
		{"Designing Data-Intensive Applications", "Martin Kleppmann", "O'Reilly Media", 2017},
	}

	books := make([]BookRow, 0, numBooks)

	for i := 0; i < numBooks; i++ {
		seed := seeds[i%len(seeds)]
		books = append(books, BookRow{
			ISBN:      fmt.Sprintf("978-1-098-%05d-%d", i, i%10),
			Title:     seed.Title,
			Author:    seed.Author,
			Publisher: seed.Publisher,
			Year:      seed.Year,
		})
	}

	return books
}

func generateItems(numItems int, books []BookRow) []ItemRow {
	locations := []string{"main-floor", "annex", "stacks-2", "reading-room"}
	conditions := []string{"new", "good", "worn"}
	items := make([]ItemRow, 0, numItems)

	for i := 0; i < numItems; i++ {
		items = append(items, ItemRow{
			ID:        mustUUIDv7(),
			ISBN:      books[rand.IntN(len(books))].ISBN,
			Barcode:   fmt.Sprintf("BC-%08d", i),
			State:     "available",
			Location:  locations[rand.IntN(len(locations))],
			Condition: conditions[rand.IntN(len(conditions))],
		})
	}

	return items
}

func generatePatrons(numPatrons int) []PatronRow {
	categories := []string{"student", "faculty", "staff", "external"}
	patrons := make([]PatronRow, 0, numPatrons)

	for i := 0; i < numPatrons; i++ {
		patrons = append(patrons, PatronRow{
			ID:       fmt.Sprintf("P-%06d", i),
			Name:     fmt.Sprintf("Patron %d", i),
			Category: categories[rand.IntN(len(categories))],
			Email:    fmt.Sprintf("patron%d@example.edu", i),
		})
	}

	return patrons
}

// generateLoans produces a loan history with realistic patterns: most loans
// are returned on time, some come back late and incur a fine, and a tail of
// loans stays open. Open loans flip their item to on_loan so the generated
// data satisfies the one-open-loan-per-item constraint.
func generateLoans(numLoans int, items []ItemRow, patrons []PatronRow, fakeClock *time.Time) ([]LoanRow, []FineRow) {
	var loans []LoanRow
	var fines []FineRow

	itemsOnLoan := make(map[uuid.UUID]bool)

	for len(loans) < numLoans {
		item := &items[rand.IntN(len(items))]
		if itemsOnLoan[item.ID] {
			continue
		}

		patron := patrons[rand.IntN(len(patrons))]

		*fakeClock = fakeClock.Add(time.Duration(rand.IntN(3600)) * time.Second)
		issuedAt := dateOnly(*fakeClock)
		dueAt := issuedAt.AddDate(0, 0, LoanDurationDays)

		loan := LoanRow{
			ID:       mustUUIDv7(),
			ItemID:   item.ID,
			PatronID: patron.ID,
			IssuedAt: issuedAt,
			DueAt:    dueAt,
		}

		// Decide what happens to this loan (weighted probabilities)
		action := rand.IntN(100)

		switch {
		case action < 70: // 70% chance: returned on time
			returnedAt := issuedAt.AddDate(0, 0, rand.IntN(LoanDurationDays+1))
			loan.ReturnedAt = &returnedAt

		case action < 90: // 20% chance: returned late, fine incurred
			overdueDays := rand.IntN(14) + 1
			returnedAt := dueAt.AddDate(0, 0, overdueDays)
			loan.ReturnedAt = &returnedAt

			fines = append(fines, FineRow{
				ID:         mustUUIDv7(),
				PatronID:   patron.ID,
				LoanID:     loan.ID,
				Amount:     int64(overdueDays) * DailyRateCents,
				Status:     pickFineStatus(),
				IncurredAt: returnedAt,
			})

		default: // 10% chance: still open
			item.State = "on_loan"
			itemsOnLoan[item.ID] = true
		}

		loans = append(loans, loan)
	}

	return loans, fines
}

func pickFineStatus() string {
	if rand.IntN(100) < 40 {
		return "settled"
	}

	return "pending"
}

func mustUUIDv7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}

	return id
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()

	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func buildSQLInserts(books []BookRow, items []ItemRow, patrons []PatronRow, loans []LoanRow, fines []FineRow) string {
	var builder strings.Builder

	// just a little hack to avoid SQL inspection in the IDE
	builder.WriteString("INSERT " + "INTO " + "books (isbn, title, author, publisher, year) VALUES\n")
	for i, b := range books {
		if i > 0 {
			builder.WriteString(",\n")
		}
		builder.WriteString(fmt.Sprintf("    ('%s', '%s', '%s', '%s', %d)",
			b.ISBN, escapeQuotes(b.Title), escapeQuotes(b.Author), escapeQuotes(b.Publisher), b.Year))
	}
	builder.WriteString(";\n\n")

	builder.WriteString("INSERT " + "INTO " + "items (id, book_isbn, barcode, state, location, condition) VALUES\n")
	for i, it := range items {
		if i > 0 {
			builder.WriteString(",\n")
		}
		builder.WriteString(fmt.Sprintf("    ('%s', '%s', '%s', '%s', '%s', '%s')",
			it.ID, it.ISBN, it.Barcode, it.State, it.Location, it.Condition))
	}
	builder.WriteString(";\n\n")

	builder.WriteString("INSERT " + "INTO " + "patrons (id, name, category, email) VALUES\n")
	for i, p := range patrons {
		if i > 0 {
			builder.WriteString(",\n")
		}
		builder.WriteString(fmt.Sprintf("    ('%s', '%s', '%s', '%s')",
			p.ID, escapeQuotes(p.Name), p.Category, p.Email))
	}
	builder.WriteString(";\n\n")

	builder.WriteString("INSERT " + "INTO " + "loans (id, item_id, patron_id, issued_at, due_at, returned_at) VALUES\n")
	for i, l := range loans {
		if i > 0 {
			builder.WriteString(",\n")
		}
		returnedAt := "NULL"
		if l.ReturnedAt != nil {
			returnedAt = fmt.Sprintf("'%s'", l.ReturnedAt.Format(time.DateOnly))
		}
		builder.WriteString(fmt.Sprintf("    ('%s', '%s', '%s', '%s', '%s', %s)",
			l.ID, l.ItemID, l.PatronID, l.IssuedAt.Format(time.DateOnly), l.DueAt.Format(time.DateOnly), returnedAt))
	}
	builder.WriteString(";\n\n")

	if len(fines) > 0 {
		builder.WriteString("INSERT " + "INTO " + "fines (id, patron_id, loan_id, amount_cents, status, incurred_at) VALUES\n")
		for i, f := range fines {
			if i > 0 {
				builder.WriteString(",\n")
			}
			builder.WriteString(fmt.Sprintf("    ('%s', '%s', '%s', %d, '%s', '%s')",
				f.ID, f.PatronID, f.LoanID, f.Amount, f.Status, f.IncurredAt.Format(time.DateOnly)))
		}
		builder.WriteString(";\n")
	}

	return builder.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func writeSQLToFile(books []BookRow, items []ItemRow, patrons []PatronRow, loans []LoanRow, fines []FineRow, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(outputDir, OutputFile)
	sqlContent := buildSQLInserts(books, items, patrons, loans, fines)

	if err := os.WriteFile(filePath, []byte(sqlContent), 0644); err != nil {
		return fmt.Errorf("failed to write SQL file: %w", err)
	}

	fmt.Printf("Successfully generated %d loans (%d fines) and wrote SQL to %s\n", len(loans), len(fines), filePath)

	return nil
}

func writeManifest(books []BookRow, items []ItemRow, patrons []PatronRow, loans []LoanRow, fines []FineRow, outputDir string) error {
	manifest := Manifest{
		Books:   len(books),
		Items:   len(items),
		Patrons: len(patrons),
		Loans:   len(loans),
		Fines:   len(fines),
	}

	for _, l := range loans {
		if l.ReturnedAt == nil {
			manifest.OpenLoans++
		}
	}

	for _, f := range fines {
		if f.Status == "pending" {
			manifest.PendingCents += f.Amount
		}
	}

	content, err := jsoniter.ConfigFastest.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	filePath := filepath.Join(outputDir, ManifestFile)
	if err = os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}
