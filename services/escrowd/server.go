package escrowd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bountyvault/native/common"
	"bountyvault/native/escrow"
	"bountyvault/native/fees"
	"bountyvault/observability"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Server is the HTTP front-end for the escrow engine.
type Server struct {
	engine  *escrow.Engine
	auth    *Authenticator
	limiter *RateLimiter
	log     *slog.Logger
	metrics *observability.EscrowdMetrics
	router  chi.Router
}

func NewServer(engine *escrow.Engine, auth *Authenticator, limiter *RateLimiter, log *slog.Logger) *Server {
	if engine == nil {
		panic("escrow engine required")
	}
	if auth == nil {
		auth = NewAuthenticator("")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		engine:  engine,
		auth:    auth,
		limiter: limiter,
		log:     log,
		metrics: observability.Escrowd(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.recoverer)
	r.Use(s.instrument)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/escrow/{bountyID}", s.handleEscrowGet)
		r.Get("/escrow/{bountyID}/refunds", s.handleRefundHistory)
		r.Get("/escrow/{bountyID}/payouts", s.handlePayoutHistory)
		r.Get("/escrow/{bountyID}/schedules", s.handleSchedules)
		r.Get("/escrow/{bountyID}/schedules/pending", s.handlePendingSchedules)
		r.Get("/escrow/{bountyID}/schedules/history", s.handleScheduleHistory)
		r.Get("/balance", s.handleBalance)
		r.Get("/stats", s.handleStats)
		r.Get("/fees", s.handleFeeConfig)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/escrow/lock", s.handleLock)
			r.Post("/escrow/release", s.handleRelease)
			r.Post("/escrow/refund", s.handleRefund)
			r.Post("/escrow/refund/approve", s.handleApproveRefund)
			r.Post("/escrow/{bountyID}/schedules", s.handleCreateSchedules)
			r.Post("/escrow/{bountyID}/schedules/execute-all", s.handleExecuteAllSchedules)
			r.Post("/escrow/{bountyID}/schedules/{index}/execute", s.handleExecuteSchedule)
			r.Post("/escrow/{bountyID}/schedules/{index}/cancel", s.handleCancelSchedule)
			r.Post("/batch/lock", s.handleBatchLock)
			r.Post("/batch/release", s.handleBatchRelease)
			r.Post("/admin/pause", s.handlePause)
			r.Post("/admin/unpause", s.handleUnpause)
			r.Post("/admin/fees", s.handleUpdateFeeConfig)
			r.Post("/admin/rotate", s.handleRotateAdmin)
			r.Post("/admin/ratelimit", s.handleUpdateRateLimit)
			r.Post("/admin/whitelist", s.handleWhitelist)
		})
	})
	return r
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		operation := r.Method + " " + chi.RouteContext(r.Context()).RoutePattern()
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Observe(operation, status, time.Since(start))
	})
}

// recoverer converts panics into 500 responses. The engine aborts re-entrant
// calls via panic, so that specific condition gets its own log line.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, escrow.ErrReentrancy) {
				s.log.Error("reentrant escrow call rejected", "path", r.URL.Path)
				writeError(w, http.StatusConflict, err)
				return
			}
			s.log.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprint(rec))
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON payload: %w", err))
		return false
	}
	return true
}

func bountyIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "bountyID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bounty id: %q", raw)
	}
	return id, nil
}

func scheduleIndexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid schedule index: %q", raw)
	}
	return index, nil
}

// refreshCustodyGauge updates the custody balance metric after fund movement.
// Failures are ignored: the gauge is advisory.
func (s *Server) refreshCustodyGauge() {
	balance, err := s.engine.Balance()
	if err != nil {
		return
	}
	s.metrics.RecordCustodyBalance(balance)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- queries ---

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	esc, err := s.engine.GetEscrow(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newEscrowView(esc))
}

func (s *Server) handleRefundHistory(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.engine.RefundHistory(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newRefundViews(records))
}

func (s *Server) handlePayoutHistory(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.engine.PayoutHistory(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newPayoutViews(records))
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	schedules, err := s.engine.ReleaseSchedules(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newScheduleViews(schedules))
}

func (s *Server) handlePendingSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	schedules, err := s.engine.PendingSchedules(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newScheduleViews(schedules))
}

func (s *Server) handleScheduleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.engine.ScheduleHistory(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newScheduleHistoryViews(entries))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.engine.Balance()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.RecordCustodyBalance(balance)
	writeJSON(w, http.StatusOK, map[string]string{"balance": formatAmount(balance)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsView(stats))
}

func (s *Server) handleFeeConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.FeeConfig()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newFeeConfigView(cfg))
}

// --- mutations ---

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decode(w, r, &req) {
		return
	}
	depositor, err := parseAddress(req.Depositor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Lock(depositor, req.BountyID, amount, req.Deadline); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusCreated, map[string]uint64{"bountyId": req.BountyID})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	contributor, err := parseAddress(req.Contributor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseOptionalAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Release(caller, req.BountyID, contributor, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusOK, map[string]uint64{"bountyId": req.BountyID})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := parseRefundMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseOptionalAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var recipient *[20]byte
	if req.Recipient != "" {
		addr, aerr := parseAddress(req.Recipient)
		if aerr != nil {
			writeError(w, http.StatusBadRequest, aerr)
			return
		}
		recipient = &addr
	}
	if err := s.engine.Refund(caller, req.BountyID, amount, recipient, mode); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusOK, map[string]uint64{"bountyId": req.BountyID})
}

func (s *Server) handleApproveRefund(w http.ResponseWriter, r *http.Request) {
	var req approveRefundRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := parseRefundMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.ApproveCustomRefund(caller, req.BountyID, amount, recipient, mode); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"bountyId": req.BountyID})
}

func (s *Server) handleCreateSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req schedulesCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	requests := make([]escrow.ScheduleRequest, len(req.Schedules))
	for i, item := range req.Schedules {
		amount, aerr := parseAmount(item.Amount)
		if aerr != nil {
			writeError(w, http.StatusBadRequest, aerr)
			return
		}
		requests[i] = escrow.ScheduleRequest{Amount: amount, Timestamp: item.Timestamp}
	}
	if err := s.engine.CreateSchedules(caller, id, requests); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created": len(requests)})
}

func (s *Server) handleExecuteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	index, err := scheduleIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req scheduleExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.ExecuteSchedule(caller, id, index, recipient); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusOK, map[string]int{"executed": 1})
}

func (s *Server) handleExecuteAllSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req scheduleExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	executed, err := s.engine.ExecuteAllReady(caller, id, recipient)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusOK, map[string]int{"executed": executed})
}

func (s *Server) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := bountyIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	index, err := scheduleIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req scheduleCancelRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.CancelSchedule(caller, id, index); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"bountyId": id})
}

func (s *Server) handleBatchLock(w http.ResponseWriter, r *http.Request) {
	var req batchLockRequest
	if !s.decode(w, r, &req) {
		return
	}
	items := make([]escrow.LockItem, len(req.Items))
	for i, item := range req.Items {
		depositor, err := parseAddress(item.Depositor)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		amount, err := parseAmount(item.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		items[i] = escrow.LockItem{
			Depositor: depositor,
			BountyID:  item.BountyID,
			Amount:    amount,
			Deadline:  item.Deadline,
		}
	}
	locked, err := s.engine.BatchLock(items)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusCreated, map[string]int{"locked": locked})
}

func (s *Server) handleBatchRelease(w http.ResponseWriter, r *http.Request) {
	var req batchReleaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	items := make([]escrow.ReleaseItem, len(req.Items))
	for i, item := range req.Items {
		contributor, cerr := parseAddress(item.Contributor)
		if cerr != nil {
			writeError(w, http.StatusBadRequest, cerr)
			return
		}
		items[i] = escrow.ReleaseItem{BountyID: item.BountyID, Contributor: contributor}
	}
	released, err := s.engine.BatchRelease(caller, items)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.refreshCustodyGauge()
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.SetPause(true)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.SetPause(false)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleUpdateFeeConfig(w http.ResponseWriter, r *http.Request) {
	var req feeConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipient, err := parseAddress(req.FeeRecipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg := &fees.Config{
		LockFeeRate:    req.LockFeeRate,
		ReleaseFeeRate: req.ReleaseFeeRate,
		FeeRecipient:   recipient,
		Enabled:        req.Enabled,
	}
	if err := s.engine.UpdateFeeConfig(caller, cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newFeeConfigView(cfg))
}

func (s *Server) handleRotateAdmin(w http.ResponseWriter, r *http.Request) {
	var req rotateAdminRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	newAdmin, err := parseAddress(req.NewAdmin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.UpdateAdmin(caller, newAdmin); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"admin": formatAddress(newAdmin)})
}

func (s *Server) handleUpdateRateLimit(w http.ResponseWriter, r *http.Request) {
	var req rateLimitConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg := common.RateLimitConfig{
		WindowSize:     req.WindowSize,
		MaxOperations:  req.MaxOperations,
		CooldownPeriod: req.CooldownPeriod,
	}
	if err := s.engine.UpdateRateLimitConfig(caller, cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Remove {
		err = s.engine.WhitelistRemove(caller, addr)
	} else {
		err = s.engine.WhitelistAdd(caller, addr)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"whitelisted": !req.Remove})
}
