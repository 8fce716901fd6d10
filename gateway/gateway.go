package gateway

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/internal/metrics"
	"github.com/jrsteele09/go-pos-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/go-pos-client/gateway"

// Session is the slice of session.Manager the gateway depends on.
type Session interface {
	Credentials() (session.Credentials, error)
	Refresh(ctx context.Context, rejected string) (string, error)
}

var _ Session = (*session.Manager)(nil)

// Executor is what feature code depends on to reach the backend.
type Executor interface {
	Execute(ctx context.Context, req api.Request) (*api.Response, error)
}

var _ Executor = (*Gateway)(nil)

// Gateway is the single path for outbound calls. It attaches session headers and recovers
// from one expired token per logical call. Other failures are returned unmodified.
type Gateway struct {
	sender  api.Sender
	session Session
	tracer  trace.Tracer
}

type Option func(*Gateway)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		g.tracer = tp.Tracer(tracerName)
	}
}

func New(sender api.Sender, sess Session, options ...Option) (*Gateway, error) {
	if sender == nil {
		return nil, errors.New("[gateway.New] sender is required")
	}
	if sess == nil {
		return nil, errors.New("[gateway.New] session is required")
	}
	g := &Gateway{
		sender:  sender,
		session: sess,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

func (g *Gateway) Execute(ctx context.Context, req api.Request) (*api.Response, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Execute", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	))
	defer span.End()

	resp, outcome, err := g.execute(ctx, req, span)
	metrics.GatewayRequests.WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return resp, nil
}

func (g *Gateway) execute(ctx context.Context, req api.Request, span trace.Span) (*api.Response, string, error) {
	for attempt := 0; ; attempt++ {
		creds, err := g.session.Credentials()
		if err != nil && !IsAuthPath(req.Path) {
			return nil, metrics.ResultUnauthorized, err
		}

		resp, err := g.sender.Send(ctx, withCredentials(req, creds))
		if err == nil {
			if attempt > 0 {
				return resp, metrics.ResultRetried, nil
			}
			return resp, metrics.ResultOK, nil
		}
		if !errors.Is(err, api.ErrUnauthorized) {
			return nil, metrics.ResultError, err
		}
		if !ShouldRetryAfterAuthFailure(req, attempt) {
			log.Debug().Str("path", req.Path).Int("attempt", attempt).Msg("unauthorized, not retrying")
			return nil, metrics.ResultUnauthorized, err
		}

		span.AddEvent("refresh")
		if _, rerr := g.session.Refresh(ctx, creds.AccessToken()); rerr != nil {
			return nil, metrics.ResultUnauthorized, errors.Wrap(rerr, "[Gateway.Execute] refresh after 401")
		}
	}
}

// withCredentials returns a copy of req carrying headers from one credentials snapshot.
func withCredentials(req api.Request, creds session.Credentials) api.Request {
	// Add canonicalises keys, so a caller's "authorization" cannot shadow the session's.
	header := http.Header{}
	for k, values := range req.Header {
		for _, v := range values {
			header.Add(k, v)
		}
	}
	for k, values := range creds.Header() {
		header.Del(k)
		for _, v := range values {
			header.Add(k, v)
		}
	}
	req.Header = header
	return req
}
