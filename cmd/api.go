package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/russellquealy-cloud/dealflow/internal/analytics"
	"github.com/russellquealy-cloud/dealflow/internal/analyzer"
	"github.com/russellquealy-cloud/dealflow/internal/config"
	"github.com/russellquealy-cloud/dealflow/internal/distress"
	"github.com/russellquealy-cloud/dealflow/internal/geo"
	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/profile"
	"github.com/russellquealy-cloud/dealflow/internal/store"
)

// apiServer bundles the request-scoped services behind the HTTP API.
type apiServer struct {
	st       store.Store
	agg      *analytics.Aggregator
	searcher *geo.Searcher
	analyzer *analyzer.Analyzer
	distress distress.Config
}

func newAPIServer(st store.Store, an *analyzer.Analyzer, distressCfg distress.Config) *apiServer {
	return &apiServer{
		st:       st,
		agg:      analytics.New(st),
		searcher: geo.NewSearcher(st),
		analyzer: an,
		distress: distressCfg,
	}
}

func (s *apiServer) router(sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-User-Role"},
	}))
	r.Use(rateLimit(rate.Limit(sc.RateLimitRPS), sc.RateLimitBurst))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/analytics/heatmap", s.handleViewHeatmap)
		r.Get("/analytics/distress-heatmap", s.handleDistressHeatmap)
		r.Get("/listings/{id}", s.handleGetListing)
		r.Post("/listings/polygon-search", s.handlePolygonSearch)
		r.Get("/markets/trends", s.handleTrends)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/profile/completeness", s.handleCompleteness)
	})

	return r
}

// rateLimit throttles per caller, keyed on user ID with a remote-address
// fallback for unauthenticated requests.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(limit, burst)
			limiters[key] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-User-ID")
			if key == "" {
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					key = host
				} else {
					key = r.RemoteAddr
				}
			}
			if !limiterFor(key).Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// viewerFrom resolves the caller's entitlement from headers once, at the
// request boundary.
func viewerFrom(r *http.Request) (model.Viewer, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return model.Viewer{}, false
	}
	return model.Viewer{
		UserID: userID,
		Role:   model.ParseRole(r.Header.Get("X-User-Role")),
	}, true
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	v, ok := viewerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	snap, err := s.agg.Snapshot(r.Context(), v)
	if err != nil {
		zap.L().Error("analytics snapshot failed", zap.String("user", v.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleViewHeatmap(w http.ResponseWriter, r *http.Request) {
	v, ok := viewerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	points, err := s.agg.ViewHeatmap(r.Context(), v)
	if err != nil {
		zap.L().Error("view heatmap failed", zap.String("user", v.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load heatmap")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points, "count": len(points)})
}

func (s *apiServer) handleDistressHeatmap(w http.ResponseWriter, r *http.Request) {
	v, ok := viewerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	points, err := s.agg.DistressHeatmap(r.Context(), v, s.distress)
	if err != nil {
		zap.L().Error("distress heatmap failed", zap.String("user", v.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load heatmap")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points, "count": len(points)})
}

func (s *apiServer) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := s.st.GetListing(r.Context(), id)
	if err != nil {
		zap.L().Error("get listing failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load listing")
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *apiServer) handlePolygonSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Polygon json.RawMessage `json:"polygon"`
		Filters geo.Filters     `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Polygon) == 0 {
		writeError(w, http.StatusBadRequest, "polygon is required")
		return
	}

	ring, err := geo.ParsePolygon(req.Polygon)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid polygon")
		return
	}

	result, err := s.searcher.SearchRing(r.Context(), ring, req.Filters)
	if err != nil {
		zap.L().Error("polygon search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleTrends(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}
	limit := 12
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	series, err := s.st.TrendSeries(r.Context(), region, limit)
	if err != nil {
		zap.L().Error("trend series failed", zap.String("region", region), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load trends")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"region": region, "series": series})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	v, ok := viewerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var req struct {
		ListingID string `json:"listing_id"`
		analyzer.Input
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := req.Input
	if req.ListingID != "" {
		l, err := s.st.GetListing(r.Context(), req.ListingID)
		if err != nil {
			zap.L().Error("analyze listing lookup failed", zap.String("id", req.ListingID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load listing")
			return
		}
		if l == nil {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		in = listingInput(l)
		if snap, err := s.marketFor(r, l); err == nil {
			in.Market = snap
		}
	}
	if in.Sqft <= 0 {
		writeError(w, http.StatusBadRequest, "sqft must be > 0")
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), v.UserID, req.ListingID, in)
	if err != nil {
		zap.L().Error("analysis failed", zap.String("user", v.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *apiServer) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, profile.Completeness(&p))
}

// marketFor finds the market snapshot covering a listing's city, if any.
func (s *apiServer) marketFor(r *http.Request, l *model.Listing) (*model.MarketSnapshot, error) {
	if l.City == nil {
		return nil, nil
	}
	snaps, err := s.st.MarketSnapshots(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		if strings.EqualFold(snaps[i].RegionName, *l.City) {
			return &snaps[i], nil
		}
	}
	return nil, nil
}

// listingInput maps a stored listing onto an analysis request.
func listingInput(l *model.Listing) analyzer.Input {
	in := analyzer.Input{}
	if l.Address != nil {
		in.Address = *l.Address
	}
	if l.Beds != nil {
		in.Beds = *l.Beds
	}
	if l.Baths != nil {
		in.Baths = *l.Baths
	}
	if l.Sqft != nil {
		in.Sqft = *l.Sqft
	}
	if l.PropertyType != nil {
		in.PropertyType = *l.PropertyType
	}
	return in
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
