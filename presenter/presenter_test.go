package presenter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/monitor"
	"github.com/xbridge/bridge-coordinator/presenter"
)

type transactionsStub struct {
	txs     map[string]*entity.BridgeTransaction
	filters []*entity.TransactionFilter
}

func (s *transactionsStub) GetStatus(_ context.Context, id string) (*entity.BridgeTransaction, error) {
	if tx, ok := s.txs[id]; ok {
		return tx, nil
	}
	return nil, fmt.Errorf("can't get transaction %s: %w", id, db.ErrNotFound)
}

func (s *transactionsStub) GetHistory(_ context.Context, address string, filter *entity.TransactionFilter) ([]*entity.BridgeTransaction, error) {
	s.filters = append(s.filters, filter)
	var res []*entity.BridgeTransaction
	for _, tx := range s.txs {
		if tx.SourceAddress == address || tx.DestinationAddress == address {
			res = append(res, tx)
		}
	}
	return res, nil
}

func (s *transactionsStub) GetStatistics(context.Context) (*entity.Statistics, error) {
	stats := entity.NewStatistics()
	stats.Record(entity.StatusCompleted, "xrpl", "ethereum", 2, entity.NewAmount(30), entity.NewAmount(1))
	return stats, nil
}

type healthStub struct {
	report *monitor.HealthReport
}

func (h *healthStub) Health() *monitor.HealthReport {
	return h.report
}

type validatorsStub struct {
	validators []*entity.Validator
}

func (v *validatorsStub) Validators(context.Context) ([]*entity.Validator, error) {
	return v.validators, nil
}

func (v *validatorsStub) Required() uint {
	return 2
}

type fixture struct {
	server *presenter.Presenter
	txs    *transactionsStub
	health *healthStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Now()
	stale := now.Add(-time.Hour)
	tx := &entity.BridgeTransaction{
		ID:                 "tx-1",
		SourceKind:         entity.ChainKindNative,
		DestinationKind:    entity.ChainKindEVM,
		SourceChain:        "xrpl",
		DestinationChain:   "ethereum",
		SourceAddress:      "rSource",
		DestinationAddress: "0xdestination",
		Amount:             entity.NewAmount(15),
		Fee:                entity.NewAmount(1),
		Status:             entity.StatusMinting,
		CreatedAt:          now,
	}
	f := &fixture{
		txs:    &transactionsStub{txs: map[string]*entity.BridgeTransaction{tx.ID: tx}},
		health: new(healthStub),
	}
	validators := &validatorsStub{validators: []*entity.Validator{
		{ID: "0x01", Active: true, LastHeartbeatAt: &now},
		{ID: "0x02", Active: true, LastHeartbeatAt: &stale},
		{ID: "0x03", Active: true},
	}}
	cfg := &config.Config{Registry: &config.RegistryConfig{LivenessWindow: time.Minute}}
	f.server = presenter.NewPresenter(logging.NewNop(), cfg, f.txs, f.health, validators)
	return f
}

func (f *fixture) get(t *testing.T, path string, res interface{}) int {
	t.Helper()

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if res != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))
	}
	return rec.Code
}

func TestPresenter_GetTransaction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var tx entity.BridgeTransaction
	require.Equal(t, http.StatusOK, f.get(t, "/transactions/tx-1", &tx))
	require.Equal(t, "tx-1", tx.ID)
	require.Equal(t, entity.StatusMinting, tx.Status)
	require.Equal(t, entity.NewAmount(15), tx.Amount)

	require.Equal(t, http.StatusNotFound, f.get(t, "/transactions/missing", nil))
}

func TestPresenter_GetAddressHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var res presenter.HistoryResult
	path := "/addresses/rSource/transactions?status=minting,COMPLETED&chain=xrpl&limit=10&offset=5&since=2026-01-02T15:04:05Z"
	require.Equal(t, http.StatusOK, f.get(t, path, &res))
	require.Equal(t, "rSource", res.Address)
	require.Len(t, res.Transactions, 1)

	require.Len(t, f.txs.filters, 1)
	filter := f.txs.filters[0]
	require.Equal(t, []entity.Status{entity.StatusMinting, entity.StatusCompleted}, filter.Statuses)
	require.Equal(t, "xrpl", filter.Chain)
	require.EqualValues(t, 10, filter.Limit)
	require.EqualValues(t, 5, filter.Offset)
	require.NotNil(t, filter.CreatedAfter)
	require.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), filter.CreatedAfter.UTC())

	res = presenter.HistoryResult{}
	require.Equal(t, http.StatusOK, f.get(t, "/addresses/nobody/transactions", &res))
	require.NotNil(t, res.Transactions)
	require.Empty(t, res.Transactions)
}

func TestPresenter_GetAddressHistoryBadFilter(t *testing.T) {
	t.Parallel()

	for _, query := range []string{
		"status=LOST",
		"limit=-1",
		"limit=5000",
		"offset=x",
		"since=yesterday",
	} {
		query := query
		t.Run(query, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			require.Equal(t, http.StatusBadRequest, f.get(t, "/addresses/rSource/transactions?"+query, nil))
			require.Empty(t, f.txs.filters)
		})
	}
}

func TestPresenter_GetStatistics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var stats entity.Statistics
	require.Equal(t, http.StatusOK, f.get(t, "/statistics", &stats))
	require.EqualValues(t, 2, stats.Total.Count)
	require.Equal(t, entity.NewAmount(30), stats.Total.Volume)
	require.Equal(t, entity.NewAmount(1), stats.Fees)
	require.EqualValues(t, 2, stats.ByStatus[entity.StatusCompleted].Count)
}

func TestPresenter_GetHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, http.StatusServiceUnavailable, f.get(t, "/health", nil))

	f.health.report = &monitor.HealthReport{Status: monitor.Degraded, Total: 10, Failed: 1, FailureRatio: 0.1}
	var report monitor.HealthReport
	require.Equal(t, http.StatusOK, f.get(t, "/health", &report))
	require.Equal(t, monitor.Degraded, report.Status)
	require.EqualValues(t, 10, report.Total)

	f.health.report = &monitor.HealthReport{Status: monitor.Critical}
	require.Equal(t, http.StatusServiceUnavailable, f.get(t, "/health", nil))
}

func TestPresenter_GetValidators(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var res presenter.ValidatorsResult
	require.Equal(t, http.StatusOK, f.get(t, "/validators", &res))
	require.EqualValues(t, 2, res.Required)
	require.EqualValues(t, 1, res.LiveValidators)
	require.False(t, res.Quorum)
	require.Len(t, res.Validators, 3)
	require.True(t, res.Validators[0].Live)
	require.False(t, res.Validators[1].Live)
	require.False(t, res.Validators[2].Live)
}
