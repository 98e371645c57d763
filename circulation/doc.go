// Package circulation contains the domain model of the library circulation
// core: books, physical items, patrons, loans and fines, together with the
// pure derivation logic (loan status, overdue days, fine amounts) and the
// typed error kinds that every storage engine must return.
//
// The package is deliberately free of storage and transport dependencies so
// that business rules can be unit-tested without a database. The Postgres
// storage engine lives in the postgresengine subpackage.
package circulation
