package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/punchcard/internal/email"
	"github.com/dukerupert/punchcard/internal/handler"
	"github.com/dukerupert/punchcard/internal/middleware"
	"github.com/dukerupert/punchcard/internal/store"
	"github.com/dukerupert/punchcard/internal/wallet"
	ws "github.com/dukerupert/punchcard/internal/websocket"
)

// Onboarding endpoints allow this many requests per restaurant and client
// IP each window.
const (
	onboardingLimit  = 10
	onboardingWindow = time.Minute
)

type Config struct {
	// Email sends welcome and redemption receipts when configured.
	Email *email.Client
	// OriginPatterns are the hosts allowed to open the dashboard websocket
	// cross-origin.
	OriginPatterns []string
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	onboardingH  *handler.OnboardingHandler
	walletH      *handler.WalletHandler
	merchantH    *handler.MerchantHandler
	rewardH      *handler.RewardHandler
	analyticsH   *handler.AnalyticsHandler
	restaurants  *store.RestaurantStore
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	cfg          Config
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	restaurantStore := store.NewRestaurantStore(db)
	customerStore := store.NewCustomerStore(db)
	rewardStore := store.NewRewardStore(db)
	ledgerStore := store.NewLedgerStore(db)
	sessionStore := store.NewSessionStore(db)

	opts := []wallet.Option{wallet.WithNotifier(hub)}
	if cfg.Email != nil && cfg.Email.Configured() {
		opts = append(opts, wallet.WithReceipts(cfg.Email))
	} else {
		logger.Info("email not configured, receipts disabled")
	}
	walletSvc := wallet.NewService(restaurantStore, customerStore, rewardStore, ledgerStore, logger, opts...)

	return &Server{
		db:           db,
		hub:          hub,
		onboardingH:  handler.NewOnboardingHandler(restaurantStore, sessionStore, walletSvc, logger.With("component", "onboarding")),
		walletH:      handler.NewWalletHandler(walletSvc, sessionStore, logger.With("component", "wallet_handler")),
		merchantH:    handler.NewMerchantHandler(restaurantStore, customerStore, walletSvc, logger.With("component", "merchant")),
		rewardH:      handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		analyticsH:   handler.NewAnalyticsHandler(store.NewAnalyticsStore(db), store.NewROISettingsStore(db), logger.With("component", "analytics")),
		restaurants:  restaurantStore,
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(),
		cfg:          cfg,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/restaurants/{slug}", s.onboardingH.Profile)
	outerMux.HandleFunc("POST /api/restaurants/{slug}/customers/lookup", s.rateLimitedHandler(s.onboardingH.Lookup))
	outerMux.HandleFunc("POST /api/restaurants/{slug}/signup", s.rateLimitedHandler(s.onboardingH.Signup))
	outerMux.HandleFunc("POST /api/restaurants/{slug}/login", s.rateLimitedHandler(s.onboardingH.Login))

	// Customer wallet, behind the session cookie
	walletMux := http.NewServeMux()
	s.registerWalletRoutes(walletMux)
	outerMux.Handle("/api/wallet/", middleware.RequireCustomer(s.sessionStore)(walletMux))
	outerMux.Handle("/api/wallet", middleware.RequireCustomer(s.sessionStore)(walletMux))

	// Merchant dashboard, behind HTTP Basic restaurant credentials
	merchantMux := http.NewServeMux()
	s.registerMerchantRoutes(merchantMux)
	requireMerchant := middleware.RequireMerchant(s.restaurants)
	outerMux.Handle("/api/merchant/", requireMerchant(merchantMux))
	outerMux.Handle("/ws", requireMerchant(merchantMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.BySlugAndIP, onboardingLimit, onboardingWindow)
	return rl(h).ServeHTTP
}

func (s *Server) registerWalletRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/wallet", s.walletH.Snapshot)
	mux.HandleFunc("POST /api/wallet/logout", s.walletH.Logout)
	mux.HandleFunc("GET /api/wallet/transactions", s.walletH.Transactions)
	mux.HandleFunc("GET /api/wallet/rewards", s.walletH.Rewards)
	mux.HandleFunc("POST /api/wallet/rewards/{id}/redeem", s.walletH.Redeem)
	mux.HandleFunc("GET /api/wallet/qr", s.walletH.QR)
}

func (s *Server) registerMerchantRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/merchant/restaurant", s.merchantH.Restaurant)
	mux.HandleFunc("PUT /api/merchant/restaurant/earning", s.merchantH.UpdateEarning)

	// Customers
	mux.HandleFunc("GET /api/merchant/customers", s.merchantH.ListCustomers)
	mux.HandleFunc("GET /api/merchant/customers/{id}", s.merchantH.GetCustomer)
	mux.HandleFunc("POST /api/merchant/customers/{id}/points", s.merchantH.AddPoints)

	// Reward catalog
	mux.HandleFunc("GET /api/merchant/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/merchant/rewards", s.rewardH.Create)
	mux.HandleFunc("PUT /api/merchant/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("POST /api/merchant/rewards/{id}/deactivate", s.rewardH.Deactivate)

	// ROI analytics
	mux.HandleFunc("GET /api/merchant/analytics", s.analyticsH.Report)
	mux.HandleFunc("GET /api/merchant/settings/roi", s.analyticsH.GetSettings)
	mux.HandleFunc("PUT /api/merchant/settings/roi", s.analyticsH.UpdateSettings)

	// Live dashboard feed
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns))
}
