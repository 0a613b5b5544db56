package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dscengine/crypto"
	"dscengine/native/bank"
	"dscengine/native/dsc"
	"dscengine/native/dsc/oracle"
	"dscengine/services/dscd/eventstore"
	dscmw "dscengine/services/dscd/middleware"
)

const (
	ScopeRead   = "dsc:read"
	ScopeWrite  = "dsc:write"
	ScopeOracle = "oracle:write"
	ScopeAdmin  = "admin:write"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine        *dsc.Engine
	Bank          *bank.Bank
	Token         *bank.StableToken
	Feeds         map[dsc.Asset]*oracle.ManualFeed
	Events        *eventstore.Store
	Auth          *dscmw.Authenticator
	Limiter       *dscmw.RateLimiter
	Observability *dscmw.Observability
	Logger        *slog.Logger
}

// Server exposes the engine over HTTP. Mutations are serialised behind mu;
// the engine itself rejects re-entrant calls but not concurrent ones.
type Server struct {
	engine *dsc.Engine
	bank   *bank.Bank
	token  *bank.StableToken
	feeds  map[dsc.Asset]*oracle.ManualFeed
	events *eventstore.Store
	auth   *dscmw.Authenticator
	limit  *dscmw.RateLimiter
	obs    *dscmw.Observability
	logger *slog.Logger

	mu     sync.RWMutex
	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.Auth
	if auth == nil {
		auth = dscmw.NewAuthenticator(dscmw.AuthConfig{}, logger)
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = dscmw.NewRateLimiter(nil, logger)
	}
	obs := cfg.Observability
	if obs == nil {
		obs = dscmw.NewObservability(dscmw.ObservabilityConfig{}, logger)
	}
	feeds := cfg.Feeds
	if feeds == nil {
		feeds = make(map[dsc.Asset]*oracle.ManualFeed)
	}
	srv := &Server{
		engine: cfg.Engine,
		bank:   cfg.Bank,
		token:  cfg.Token,
		feeds:  feeds,
		events: cfg.Events,
		auth:   auth,
		limit:  limiter,
		obs:    obs,
		logger: logger,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	route := func(name, group string, scopes ...string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return s.obs.Middleware(name)(s.auth.Middleware(scopes...)(s.limit.Middleware(group)(next)))
		}
	}

	r.Route("/v1/dsc", func(api chi.Router) {
		api.With(route("dsc.params", "read", ScopeRead)).Get("/params", s.Params)
		api.With(route("dsc.assets", "read", ScopeRead)).Get("/assets", s.Assets)
		api.With(route("dsc.value", "read", ScopeRead)).Get("/value", s.Value)
		api.With(route("dsc.quantity", "read", ScopeRead)).Get("/quantity", s.Quantity)
		api.With(route("dsc.health_factor.calculate", "read", ScopeRead)).Get("/health-factor", s.CalculateHealthFactor)
		api.With(route("dsc.account", "read", ScopeRead)).Get("/accounts/{address}", s.Account)
		api.With(route("dsc.account.health_factor", "read", ScopeRead)).Get("/accounts/{address}/health-factor", s.AccountHealthFactor)
		api.With(route("dsc.account.events", "read", ScopeRead)).Get("/accounts/{address}/events", s.AccountEvents)
		api.With(route("dsc.events", "read", ScopeRead)).Get("/events", s.Events)

		api.With(route("dsc.collateral.deposit", "write", ScopeWrite)).Post("/collateral/deposit", s.DepositCollateral)
		api.With(route("dsc.collateral.redeem", "write", ScopeWrite)).Post("/collateral/redeem", s.RedeemCollateral)
		api.With(route("dsc.debt.mint", "write", ScopeWrite)).Post("/debt/mint", s.MintDebt)
		api.With(route("dsc.debt.burn", "write", ScopeWrite)).Post("/debt/burn", s.BurnDebt)
		api.With(route("dsc.deposit_and_mint", "write", ScopeWrite)).Post("/deposit-and-mint", s.DepositAndMint)
		api.With(route("dsc.redeem_for_burn", "write", ScopeWrite)).Post("/redeem-for-burn", s.RedeemForBurn)
		api.With(route("dsc.liquidate", "write", ScopeWrite)).Post("/liquidate", s.Liquidate)
		api.With(route("dsc.token.approve", "write", ScopeWrite)).Post("/token/approve", s.Approve)

		api.With(route("dsc.oracle.price", "write", ScopeOracle)).Post("/oracle/prices", s.SetPrice)
		api.With(route("dsc.admin.credit", "write", ScopeAdmin)).Post("/admin/credit", s.CreditCollateral)
	})

	return r
}

// actor resolves the account a request acts for. With authentication on the
// token subject is authoritative and a differing body account is rejected.
func (s *Server) actor(r *http.Request, requested string) (crypto.Address, error) {
	if subject, ok := dscmw.Subject(r.Context()); ok {
		addr, err := parseAddress("token subject", subject)
		if err != nil {
			return crypto.Address{}, err
		}
		if requested != "" {
			other, err := parseAddress("account", requested)
			if err != nil {
				return crypto.Address{}, err
			}
			if !other.Equal(addr) {
				return crypto.Address{}, errForbiddenAccount
			}
		}
		return addr, nil
	}
	return parseAddress("account", requested)
}
