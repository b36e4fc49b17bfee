package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports 503 until the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Repo.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traffic := s.traceMiddleware.GetMetrics()
	limits := s.rateLimiter.GetMetrics()
	threats := s.securityDetector.GetMetrics()

	var b strings.Builder
	fmt.Fprintf(&b, "requests_total %d\n", traffic.TotalRequests)
	fmt.Fprintf(&b, "requests_client_errors_total %d\n", traffic.ClientErrors)
	fmt.Fprintf(&b, "requests_server_errors_total %d\n", traffic.ServerErrors)
	fmt.Fprintf(&b, "request_duration_avg_ms %.3f\n", float64(traffic.AverageResponseTime.Microseconds())/1000)
	fmt.Fprintf(&b, "rate_limit_hits_total %d\n", limits.TotalHits)
	fmt.Fprintf(&b, "rate_limit_clients %d\n", limits.ClientCount)
	fmt.Fprintf(&b, "security_suspicious_total %d\n", threats.SuspiciousRequests)
	fmt.Fprintf(&b, "security_blocked_total %d\n", threats.BlockedRequests)
	fmt.Fprintf(&b, "uptime_seconds %d\n", int64(s.now().Sub(s.started).Seconds()))

	NewJSONResponse().Raw("text/plain; charset=utf-8", []byte(b.String())).Write(w)
}

// Account

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	u, err := s.app.Users.Register(r.Context(), req.input())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

// handleRequestReset answers 202 for unknown addresses too, so the endpoint
// cannot be used to probe for accounts.
func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.fail(w, r, applog.OpUpdate, &core.ValidationError{Field: "email", Reason: "is required"})
		return
	}
	err := s.app.Users.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.app.Users.ResetPassword(r.Context(), strings.TrimSpace(req.Token), req.Password); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Users.Settings(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	respond(w, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	st, err := s.app.Users.UpdateSettings(r.Context(), userID(r), req.input())
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	respond(w, http.StatusOK, st)
}

// Admin

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.Admin.ListUsers(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	respond(w, http.StatusOK, users)
}

func (s *Server) handleAdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if req.Status == nil {
		s.fail(w, r, applog.OpUpdate, &core.ValidationError{Field: "status", Reason: "is required"})
		return
	}
	if err := s.app.Admin.SetStatus(r.Context(), userID(r), r.PathValue("id"), *req.Status); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Admin.DeleteUser(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.app.Admin.RequireAdmin(ctx, userID(r)); err != nil {
		s.fail(w, r, applog.OpPurge, err)
		return
	}
	report, err := s.app.Maintenance.Run(ctx)
	if err != nil {
		s.fail(w, r, applog.OpPurge, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Maintenance run completed",
		"chat_logs_purged", report.ChatLogsPurged,
		"reset_tokens_purged", report.ResetTokensPurged,
		"balance_mismatches", report.BalanceMismatches)
	respond(w, http.StatusOK, report)
}
