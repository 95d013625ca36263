package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// HealthChecker is one named dependency probe.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// softCheck marks checkers whose failure leaves the service usable. A
// missing credential still lets every run finish with a report.
type softCheck interface {
	Soft() bool
}

// Pinger is anything with a cheap liveness probe (object storage).
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageHealthChecker checks the staging bucket.
type StorageHealthChecker struct {
	Store Pinger
}

func (s *StorageHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Store.Ping(ctx)
}

// CredentialHealthChecker reports a missing model API key.
type CredentialHealthChecker struct {
	Setting    string
	Credential string
}

func (c *CredentialHealthChecker) Soft() bool { return true }

func (c *CredentialHealthChecker) Check(context.Context) error {
	if strings.TrimSpace(c.Credential) == "" {
		return fmt.Errorf("%s is not configured", c.Setting)
	}
	return nil
}

// BinaryHealthChecker checks that external tools are on PATH.
type BinaryHealthChecker struct {
	Binaries []string
}

func (b *BinaryHealthChecker) Check(context.Context) error {
	var missing []string
	for _, bin := range b.Binaries {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return errors.New("not found on PATH: " + strings.Join(missing, ", "))
	}
	return nil
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler runs every checker. Hard failures answer 503, soft ones
// only downgrade the overall status to degraded.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		out := HealthStatus{Status: statusHealthy, Timestamp: time.Now().UTC(), Checks: map[string]CheckStatus{}}
		for name, c := range checkers {
			err := c.Check(ctx)
			if err == nil {
				out.Checks[name] = CheckStatus{Status: statusHealthy}
				continue
			}
			st := statusUnhealthy
			if s, ok := c.(softCheck); ok && s.Soft() {
				st = statusDegraded
			}
			out.Checks[name] = CheckStatus{Status: st, Message: err.Error()}
			if st == statusUnhealthy || out.Status == statusHealthy {
				out.Status = st
			}
		}

		code := http.StatusOK
		if out.Status == statusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, out)
	}
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadinessHandler: the process accepts requests.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]any{"status": "ready", "timestamp": time.Now().UTC()})
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
