package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/observability"
)

const (
	defaultMetricsPort  = 9090
	prometheusTextPlain = "text/plain; version=0.0.4"
)

var metricsProxyClient = &http.Client{Timeout: 5 * time.Second}

// exporterURL returns the loopback scrape URL of the Prometheus exporter, or
// false when metrics are not initialized.
func exporterURL() (string, bool) {
	if observability.PrometheusExporter == nil {
		return "", false
	}
	port := observability.GetMetricsPort()
	if port == 0 {
		port = defaultMetricsPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port), true
}

// MetricsHandler serves /metrics on the main listener by relaying a scrape of
// the exporter's own port. Exporter failures surface as generic 5xx bodies.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	target, ok := exporterURL()
	if !ok {
		HandleError(w, r, apperrors.NewServiceUnavailableError("Metrics exporter not initialized"))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		HandleError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to construct metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		HandleError(w, r, apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"))
		return
	}
	defer resp.Body.Close()

	copyEndToEndHeaders(w.Header(), resp.Header)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", prometheusTextPlain)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to relay metrics scrape", zap.Error(err))
	}
}

func copyEndToEndHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Upgrade",
}

func isHopByHop(key string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}
