package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mmeshcher/rentshop/internal/audit"
)

const requestIDHeader = "X-Request-Id"

// RequestInfo присваивает запросу идентификатор и сохраняет адрес клиента и User-Agent
// для журнала изменений. Идентификатор возвращается клиенту в заголовке X-Request-Id.
func RequestInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = audit.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)

		info := audit.Info{
			RequestID: id,
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}

		next.ServeHTTP(w, r.WithContext(audit.WithInfo(r.Context(), info)))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
