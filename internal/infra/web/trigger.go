package web

import (
	"net"
	"net/http"
	"strings"

	derror "autoshorts/internal/error"
	"autoshorts/internal/usecase"
)

const triggerRatePrefix = "autoshorts:rate:trigger:"

type triggerFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// trigger is the scheduled generation endpoint called by the cron provider.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	l := s.reqLog(r)

	tok, _ := bearer(r)
	if !secretEqual(tok, s.opts.CronSecret) {
		l.Warn().Msg("trigger refused: bad secret")
		writeJSON(w, http.StatusUnauthorized, triggerFailure{Error: "Unauthorized"})
		return
	}

	if s.Limiter != nil {
		ok, err := s.Limiter.Allow(r.Context(), triggerRatePrefix+clientIP(r), s.opts.RateLimit, s.opts.RateWindow)
		if err != nil {
			// A broken limiter store must not block the schedule.
			l.Error().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, triggerFailure{Error: "rate limit exceeded"})
			return
		}
	}

	res, err := s.Trigger.Run(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case usecase.IsLockHeld(err):
		writeJSON(w, http.StatusConflict, triggerFailure{Error: "trigger already running"})
	case derror.Is(err, derror.KindConfiguration):
		l.Error().Err(err).Msg("trigger misconfigured")
		writeJSON(w, http.StatusInternalServerError, triggerFailure{Error: causeMessage(err)})
	default:
		l.Error().Err(err).Msg("trigger failed")
		writeJSON(w, http.StatusInternalServerError, triggerFailure{Error: causeMessage(err)})
	}
}

// clientIP prefers the first X-Forwarded-For hop; cron providers call
// through proxies.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
