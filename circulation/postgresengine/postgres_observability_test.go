package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	. "github.com/circulationkit/library-circulation-go/circulation/postgresengine"
	"github.com/circulationkit/library-circulation-go/testutil/postgresengine/config"
	. "github.com/circulationkit/library-circulation-go/testutil/postgresengine/helper"
)

func Test_Observability_LogsQueriesAndOperations(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	logHandler := NewTestLogHandler(false)
	logger := slog.New(logHandler)

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithLogger(logger))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	book := GivenBookExists(t, ctxWithTimeout, cs, "6001")
	patron := GivenPatronExists(t, ctxWithTimeout, cs, "6001")
	item := GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "6001")
	logHandler.Reset()

	// act
	_, err = cs.IssueLoan(ctxWithTimeout, patron.ID, item.ID, 7)
	assert.NoError(t, err, "error in issuing the loan")

	// assert
	assert.True(t, logHandler.HasDebugLogWithDurationMS("executed sql for: issue_loan"),
		"the SQL debug log with timing is missing")
	assert.True(t, logHandler.HasInfoLog("circulation operation: issue_loan"),
		"the operational info log is missing")
}

func Test_Observability_RecordsMetrics_ForSuccessAndError(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	metricsSpy := NewMetricsCollectorSpy()

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithMetrics(metricsSpy))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	book := GivenBookExists(t, ctxWithTimeout, cs, "6002")
	metricsSpy.Reset()

	// act: a successful read and a failing create
	_, err = cs.GetBook(ctxWithTimeout, book.ISBN)
	assert.NoError(t, err, "error in reading the book")

	_, err = cs.CreateBook(ctxWithTimeout, book)
	assert.Error(t, err, "the duplicate create should fail")

	// assert
	durations := metricsSpy.GetDurationRecords()
	assert.NotEmpty(t, durations, "duration metrics are missing")

	var sawSuccess, sawError bool
	for _, record := range durations {
		switch record.Labels["status"] {
		case "success":
			sawSuccess = true
		case "error":
			sawError = true
		}
	}

	assert.True(t, sawSuccess, "a success-labeled duration metric is missing")
	assert.True(t, sawError, "an error-labeled duration metric is missing")

	counters := metricsSpy.GetCounterRecords()
	assert.NotEmpty(t, counters, "the error counter metric is missing")
	assert.Equal(t, "circulation_operation_errors", counters[0].Metric)
}

func Test_Observability_Traces_TheLoanLifecycle(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
	defer connPool.Close()
	assert.NoError(t, err, "error connecting to DB pool in test setup")

	tracingSpy := NewTracingCollectorSpy()

	cs, err := NewCirculationStoreFromPGXPool(connPool, WithTracing(tracingSpy))
	assert.NoError(t, err, "creating the store failed")

	// arrange
	CleanUp(t, connPool)
	book := GivenBookExists(t, ctxWithTimeout, cs, "6003")
	patron := GivenPatronExists(t, ctxWithTimeout, cs, "6003")
	item := GivenItemExists(t, ctxWithTimeout, cs, book.ISBN, "6003")

	// act
	loan, err := cs.IssueLoan(ctxWithTimeout, patron.ID, item.ID, 7)
	assert.NoError(t, err, "error in issuing the loan")

	_, _, err = cs.ReturnLoan(ctxWithTimeout, loan.ID)
	assert.NoError(t, err, "error in returning the loan")

	// assert
	spans := tracingSpy.GetSpans()
	assert.Len(t, spans, 2)

	assert.Equal(t, "circulation.issue_loan", spans[0].Name)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "success", spans[0].Status)

	assert.Equal(t, "circulation.return_loan", spans[1].Name)
	assert.True(t, spans[1].Finished)
	assert.Equal(t, "success", spans[1].Status)
}
