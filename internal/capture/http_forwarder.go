package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HTTPForwarder posts packet, routing, mesh-node and mesh-edge capture events
// to an external web-viewer or map uploader; command captures are not
// forwarded. It is strictly best-effort: failures are logged and swallowed,
// never returned, so a slow or unreachable viewer can never stall the core.
type HTTPForwarder struct {
	nodeURL    string
	edgeURL    string
	packetURL  string
	client     *http.Client
	log        *slog.Logger
}

// NewHTTPForwarder builds a forwarder with a keep-alive pooled client and a
// short per-request timeout. Any empty URL disables forwarding for that
// event kind.
func NewHTTPForwarder(nodeURL, edgeURL, packetURL string, log *slog.Logger) *HTTPForwarder {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPForwarder{
		nodeURL:   nodeURL,
		edgeURL:   edgeURL,
		packetURL: packetURL,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log.With("component", "capture.http_forwarder"),
	}
}

func (f *HTTPForwarder) CaptureCommand(context.Context, string, string, string, bool, string) {}

func (f *HTTPForwarder) CaptureFullPacketData(ctx context.Context, decoded any) {
	f.post(ctx, f.packetURL, decoded)
}

func (f *HTTPForwarder) CapturePacketRouting(ctx context.Context, routing any) {
	f.post(ctx, f.packetURL, routing)
}

func (f *HTTPForwarder) SendMeshNodeUpdate(ctx context.Context, node any) {
	f.post(ctx, f.nodeURL, node)
}

func (f *HTTPForwarder) SendMeshEdgeUpdate(ctx context.Context, edge any) {
	f.post(ctx, f.edgeURL, edge)
}

// post fires the request on its own goroutine so the caller never blocks on
// viewer reachability, per spec.md §6.5.
func (f *HTTPForwarder) post(parent context.Context, url string, payload any) {
	if url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		f.log.Warn("capture payload not serializable", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 3*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			f.log.Warn("capture forward request build failed", "url", url, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			f.log.Debug("capture forward failed", "url", url, "error", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 300 {
			f.log.Debug("capture forward rejected", "url", url, "status", resp.StatusCode)
		}
	}()
}
