package presenter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/monitor"
	"github.com/xbridge/bridge-coordinator/presenter/http/render"

	mw "github.com/xbridge/bridge-coordinator/presenter/http/middleware"
)

var ErrHealthUnknown = errors.New("health was not checked yet")

type TransactionReader interface {
	GetStatus(ctx context.Context, id string) (*entity.BridgeTransaction, error)
	GetHistory(ctx context.Context, address string, filter *entity.TransactionFilter) ([]*entity.BridgeTransaction, error)
	GetStatistics(ctx context.Context) (*entity.Statistics, error)
}

type HealthReader interface {
	Health() *monitor.HealthReport
}

type ValidatorReader interface {
	Validators(ctx context.Context) ([]*entity.Validator, error)
	Required() uint
}

type Presenter struct {
	logger         logging.Logger
	transactions   TransactionReader
	health         HealthReader
	validators     ValidatorReader
	livenessWindow time.Duration
	root           chi.Router
}

func NewPresenter(logger logging.Logger, cfg *config.Config, transactions TransactionReader, health HealthReader, validators ValidatorReader) *Presenter {
	p := &Presenter{
		logger:         logger.WithField("service", "presenter"),
		transactions:   transactions,
		health:         health,
		validators:     validators,
		livenessWindow: cfg.Registry.LivenessWindow,
		root:           chi.NewMux(),
	}
	p.routes()
	return p
}

func (p *Presenter) routes() {
	p.root.Use(middleware.Throttle(20))
	p.root.Use(middleware.RequestID)
	p.root.Use(mw.NewLoggerMiddleware(p.logger))
	p.root.Use(mw.Recoverer)

	p.root.Get("/transactions/{id}", p.wrapJSONHandler(p.GetTransaction))
	p.root.With(mw.GetFilterMiddleware).Get("/addresses/{address}/transactions", p.wrapJSONHandler(p.GetAddressHistory))
	p.root.Get("/statistics", p.wrapJSONHandler(p.GetStatistics))
	p.root.Get("/health", p.GetHealth)
	p.root.Get("/validators", p.wrapJSONHandler(p.GetValidators))
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	return http.ListenAndServe(addr, p.root)
}

func (p *Presenter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.root.ServeHTTP(w, r)
}

func (p *Presenter) wrapJSONHandler(handler func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		render.JSON(w, r, http.StatusOK, res)
	}
}

func (p *Presenter) GetTransaction(r *http.Request) (interface{}, error) {
	return p.transactions.GetStatus(r.Context(), chi.URLParam(r, "id"))
}

func (p *Presenter) GetAddressHistory(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")

	txs, err := p.transactions.GetHistory(ctx, address, mw.GetFilterContext(ctx))
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*entity.BridgeTransaction{}
	}
	return &HistoryResult{
		Address:      address,
		Transactions: txs,
	}, nil
}

func (p *Presenter) GetStatistics(r *http.Request) (interface{}, error) {
	return p.transactions.GetStatistics(r.Context())
}

// GetHealth answers 503 while the bridge is critical so that load balancers and probes can act on it.
func (p *Presenter) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := p.health.Health()
	if report == nil {
		http.Error(w, ErrHealthUnknown.Error(), http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	if report.Status == monitor.Critical {
		status = http.StatusServiceUnavailable
	}
	render.JSON(w, r, status, report)
}

func (p *Presenter) GetValidators(r *http.Request) (interface{}, error) {
	validators, err := p.validators.Validators(r.Context())
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-p.livenessWindow)
	res := &ValidatorsResult{
		Required:       p.validators.Required(),
		LivenessWindow: p.livenessWindow,
		Validators:     make([]*ValidatorInfo, 0, len(validators)),
	}
	for _, v := range validators {
		info := &ValidatorInfo{Validator: v, Live: v.Live(since)}
		if info.Live {
			res.LiveValidators++
		}
		res.Validators = append(res.Validators, info)
	}
	res.Quorum = res.LiveValidators >= res.Required
	return res, nil
}
