package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to GET, POST, OPTIONS.
	AllowMethods []string
	// AllowHeaders is echoed from the preflight request when empty.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials disables the "*" answer: the request origin is echoed
	// instead.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero omits it.
	MaxAge int
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(cfg CORSConfig) Middleware {
	anyOrigin := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			anyOrigin = true
			continue
		}
		allowed[strings.ToLower(o)] = o
	}

	methods := strings.Join(cfg.AllowMethods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")

	// origin returns the Access-Control-Allow-Origin value or "" to deny.
	origin := func(o string) string {
		if anyOrigin {
			if cfg.AllowCredentials {
				return o
			}
			return "*"
		}
		return allowed[strings.ToLower(o)]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			reqOrigin := r.Header.Get("Origin")
			if !anyOrigin || cfg.AllowCredentials {
				h.Add("Vary", "Origin")
			}
			if reqOrigin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow := origin(reqOrigin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allow != "" {
					h.Set("Access-Control-Allow-Origin", allow)
					h.Set("Access-Control-Allow-Methods", methods)
					if headers != "" {
						h.Set("Access-Control-Allow-Headers", headers)
					} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
						h.Set("Access-Control-Allow-Headers", rh)
					}
					if cfg.AllowCredentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if cfg.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if expose != "" {
					h.Set("Access-Control-Expose-Headers", expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
