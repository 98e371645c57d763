package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/circulationkit/library-circulation-go/circulation"
)

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var book circulation.Book
	if !s.decode(w, r, &book) {
		return
	}

	created, err := s.store.CreateBook(r.Context(), book)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, created)
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, books)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.store.GetBook(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, book)
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	var book circulation.Book
	if !s.decode(w, r, &book) {
		return
	}

	book.ISBN = chi.URLParam(r, "isbn")

	updated, err := s.store.UpdateBook(r.Context(), book)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, updated)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBook(r.Context(), chi.URLParam(r, "isbn")); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var item circulation.Item
	if !s.decode(w, r, &item) {
		return
	}

	created, err := s.store.CreateItem(r.Context(), item)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, created)
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListItems(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, rows)
}

func (s *Server) listAvailableItems(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListAvailableItems(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, rows)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	item, err := s.store.GetItem(r.Context(), itemID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, item)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		State     circulation.ItemState     `json:"state"`
		Location  string                    `json:"location"`
		Condition circulation.ItemCondition `json:"condition"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	updated, err := s.store.UpdateItem(r.Context(), itemID, body.State, body.Location, body.Condition)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, updated)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteItem(r.Context(), itemID); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) createPatron(w http.ResponseWriter, r *http.Request) {
	var patron circulation.Patron
	if !s.decode(w, r, &patron) {
		return
	}

	created, err := s.store.CreatePatron(r.Context(), patron)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, created)
}

func (s *Server) listPatrons(w http.ResponseWriter, r *http.Request) {
	patrons, err := s.store.ListPatrons(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, patrons)
}

func (s *Server) getPatron(w http.ResponseWriter, r *http.Request) {
	patron, err := s.store.GetPatron(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, patron)
}

func (s *Server) updatePatron(w http.ResponseWriter, r *http.Request) {
	var patron circulation.Patron
	if !s.decode(w, r, &patron) {
		return
	}

	patron.ID = chi.URLParam(r, "id")

	updated, err := s.store.UpdatePatron(r.Context(), patron)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, updated)
}

func (s *Server) deletePatron(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePatron(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) issueLoan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PatronID     string    `json:"patron_id"`
		ItemID       uuid.UUID `json:"item_id"`
		DurationDays int       `json:"duration_days"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	loan, err := s.store.IssueLoan(r.Context(), body.PatronID, body.ItemID, body.DurationDays)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, loan)
}

func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.store.ListLoans(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, loans)
}

func (s *Server) getLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	loan, err := s.store.GetLoan(r.Context(), loanID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, loan)
}

func (s *Server) returnLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	loan, fine, err := s.store.ReturnLoan(r.Context(), loanID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, struct {
		Loan circulation.Loan  `json:"loan"`
		Fine *circulation.Fine `json:"fine,omitempty"`
	}{Loan: loan, Fine: fine})
}

func (s *Server) forceDeleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.ForceDeleteLoan(r.Context(), loanID); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) assessFine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PatronID    string     `json:"patron_id"`
		LoanID      *uuid.UUID `json:"loan_id,omitempty"`
		AmountCents int64      `json:"amount_cents"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	fine, err := s.store.AssessFine(r.Context(), body.PatronID, body.LoanID, body.AmountCents)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, fine)
}

func (s *Server) listFines(w http.ResponseWriter, r *http.Request) {
	fines, err := s.store.ListFines(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, fines)
}

func (s *Server) getFine(w http.ResponseWriter, r *http.Request) {
	fineID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	fine, err := s.store.GetFine(r.Context(), fineID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, fine)
}

func (s *Server) settleFine(w http.ResponseWriter, r *http.Request) {
	fineID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.SettleFine(r.Context(), fineID); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) reportActiveLoans(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ActiveLoans(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, rows)
}

func (s *Server) reportPendingFines(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.PendingFines(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, rows)
}

func (s *Server) reportPopularity(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.store.BookPopularityRanking(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, ranking)
}

func (s *Server) reportAvailability(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Availability(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, report)
}

func (s *Server) reportPatronActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respond(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}

		limit = parsed
	}

	ranking, err := s.store.PatronActivityRanking(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, ranking)
}

func (s *Server) reportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, stats)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "id must be a UUID"})
		return uuid.Nil, false
	}

	return id, true
}
