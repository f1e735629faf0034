package server

import (
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

const requestIDHeader = "X-Request-ID"

func ensureRequestID(ctx *fasthttp.RequestCtx) {
	if len(ctx.Request.Header.Peek(requestIDHeader)) == 0 {
		ctx.Request.Header.Set(requestIDHeader, uuid.NewString())
	}
	ctx.Response.Header.SetBytesV(requestIDHeader, ctx.Request.Header.Peek(requestIDHeader))
}

func (h *FastHTTPServer) recover(ctx *fasthttp.RequestCtx) {
	rec := recover()
	if rec == nil {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	h.logger.Error("Recovered from panic",
		zap.Any("panic", rec),
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.ByteString("request_id", ctx.Request.Header.Peek(requestIDHeader)),
		zap.String("stack", string(buf[:n])))

	if h.metrics != nil {
		h.metrics.Counter("http_panics_total", nil).Inc()
	}

	utils.CreateErrorResponse(ctx)
}

func (h *FastHTTPServer) logRequest(ctx *fasthttp.RequestCtx, route *Route, duration time.Duration) {
	status := ctx.Response.StatusCode()

	h.logger.Debug("HTTP request",
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.ByteString("request_id", ctx.Request.Header.Peek(requestIDHeader)))

	if h.metrics == nil {
		return
	}

	path := "unmatched"
	if route != nil {
		path = route.Path
	}

	labels := map[string]string{
		"method": string(ctx.Method()),
		"path":   path,
		"status": statusClass(status),
	}
	h.metrics.Counter("http_requests_total", labels).Inc()
	h.metrics.Histogram("http_request_duration_seconds",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		map[string]string{"path": path},
	).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func writeStatus(ctx *fasthttp.RequestCtx, status int) {
	err := types.ErrPathNotFound
	if status == fasthttp.StatusMethodNotAllowed {
		err = types.ErrMethodNotAllowed
	}
	utils.WriteError(ctx, status, err)
}

func createUnauthorized(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("WWW-Authenticate", `ApiKey header="X-API-Key"`)
	utils.CreateUnauthorizedResponse(ctx)
}
