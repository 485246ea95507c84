// Package tracing esporta gli span delle discussioni su Langfuse via OTLP/HTTP.
package tracing

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/biodoia/roundtable/pkg/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentation = "github.com/biodoia/roundtable"

	// OTLPPath è il percorso dell'ingestione OTLP di Langfuse
	OTLPPath = "/api/public/otel/v1/traces"
)

// ShutdownFunc svuota e chiude l'exporter
type ShutdownFunc func(ctx context.Context) error

// Endpoint restituisce l'URL OTLP dell'istanza Langfuse
func Endpoint(host string) string {
	return strings.TrimRight(host, "/") + OTLPPath
}

// BasicAuth codifica la coppia di chiavi Langfuse
func BasicAuth(publicKey, secretKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(publicKey+":"+secretKey))
}

// Init configura il TracerProvider globale. Con Langfuse disabilitato
// resta attivo il provider no-op di otel.
func Init(ctx context.Context, cfg config.LangfuseConfig, serviceName string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("langfuse tracing requires public_key and secret_key")
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(
		otlptracehttp.WithEndpointURL(Endpoint(cfg.Host)),
		otlptracehttp.WithHeaders(map[string]string{
			"Authorization": BasicAuth(cfg.PublicKey, cfg.SecretKey),
		}),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info().Str("endpoint", Endpoint(cfg.Host)).Msg("Langfuse tracing enabled")

	return tp.Shutdown, nil
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// StartForumSpan apre lo span radice di una discussione
func StartForumSpan(ctx context.Context, sessionID, userID, topic string, rounds, participants int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "forum.run",
		trace.WithAttributes(
			attribute.String("langfuse.session.id", sessionID),
			attribute.String("langfuse.user.id", userID),
			attribute.String("langfuse.trace.name", "multi-agent-forum"),
			attribute.String("forum.topic", topic),
			attribute.Int("forum.rounds", rounds),
			attribute.Int("forum.participants", participants),
		),
	)
}

// StartAgentSpan apre lo span di un singolo intervento
func StartAgentSpan(ctx context.Context, sessionID, userID, agent string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("langfuse.session.id", sessionID),
			attribute.String("langfuse.user.id", userID),
			attribute.String("agent.name", agent),
		),
	)
}

// StartLLMSpan apre uno span di tipo generation per la chiamata al modello
func StartLLMSpan(ctx context.Context, model, prompt string, streamed bool) (context.Context, trace.Span) {
	return tracer().Start(ctx, "llm.chat",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("langfuse.observation.type", "generation"),
			attribute.String("gen_ai.request.model", model),
			attribute.String("langfuse.observation.input", prompt),
			attribute.Bool("llm.streamed", streamed),
		),
	)
}

// EndLLMSpan registra output e usage e chiude lo span
func EndLLMSpan(span trace.Span, output string, promptTokens, completionTokens int, err error) {
	span.SetAttributes(
		attribute.String("langfuse.observation.output", output),
		attribute.Int("gen_ai.usage.input_tokens", promptTokens),
		attribute.Int("gen_ai.usage.output_tokens", completionTokens),
	)
	RecordError(span, err)
	span.End()
}

// RecordError marca lo span come fallito
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
