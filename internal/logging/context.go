package logging

import (
	"context"
	"log/slog"
)

// ContextHandler decorates records with request data and the chosen
// authentication mode when they are present in the context.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("path", rd.Path),
			slog.String("remote_addr", rd.RemoteAddr),
		))
	}

	if mode, ok := ctx.Value(authModeKey{}).(string); ok && mode != "" {
		r.AddAttrs(slog.Group("auth", slog.String("mode", mode)))
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	Path       string
	RemoteAddr string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type authModeKey struct{}

// WithAuthMode records which authentication mode produced the request's identity.
func WithAuthMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, authModeKey{}, mode)
}
