package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies this program in exported telemetry.
const ServiceName = "clawx-auth"

// Options selects how logs are produced.
type Options struct {
	Level slog.Level
	// Format is one of text, json or otel.
	Format string
	// OTLPEndpoint sends otel-format logs to a collector instead of stdout.
	OTLPEndpoint string
	// OTLPProtocol is http or grpc.
	OTLPProtocol string

	// Writer receives stdout-bound output. Defaults to os.Stdout.
	Writer io.Writer
}

// Instrument installs the default slog logger. The returned function flushes
// and stops any exporter and must be called before exit.
func Instrument(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	noop := func(context.Context) error { return nil }

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	switch strings.ToLower(opts.Format) {
	case "otel":
		provider, err := newLoggerProvider(ctx, opts)
		if err != nil {
			return noop, err
		}
		global.SetLoggerProvider(provider)
		// otelslog records the span context itself
		handler := otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))
		slog.SetDefault(slog.New(newContextHandler(handler, false)))
		return provider.Shutdown, nil
	default:
		handler, err := newStdoutHandler(opts.Writer, opts.Level, opts.Format)
		if err != nil {
			return noop, err
		}
		slog.SetDefault(slog.New(newContextHandler(handler, true)))
		return noop, nil
	}
}

// newStdoutHandler creates a handler for human-readable logs.
func newStdoutHandler(w io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text, otel)", logFormat)
	}

	return handler, nil
}

// newLoggerProvider builds an OpenTelemetry log pipeline filtered to the configured level.
func newLoggerProvider(ctx context.Context, opts Options) (*sdklog.LoggerProvider, error) {
	var processor sdklog.Processor

	if opts.OTLPEndpoint == "" {
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(opts.Writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout log exporter: %w", err)
		}
		processor = sdklog.NewSimpleProcessor(exporter)
	} else {
		exporter, err := newOTLPExporter(ctx, opts.OTLPEndpoint, opts.OTLPProtocol)
		if err != nil {
			return nil, err
		}
		processor = sdklog.NewBatchProcessor(exporter)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(opts.Level))),
	), nil
}

func newOTLPExporter(ctx context.Context, endpoint, protocol string) (sdklog.Exporter, error) {
	insecure := strings.HasPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	switch strings.ToLower(protocol) {
	case "", "http":
		o := []otlploghttp.Option{otlploghttp.WithEndpoint(endpoint)}
		if insecure {
			o = append(o, otlploghttp.WithInsecure())
		}
		exporter, err := otlploghttp.New(ctx, o...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP/HTTP log exporter: %w", err)
		}
		return exporter, nil
	case "grpc":
		o := []otlploggrpc.Option{otlploggrpc.WithEndpoint(endpoint)}
		if insecure {
			o = append(o, otlploggrpc.WithInsecure())
		}
		exporter, err := otlploggrpc.New(ctx, o...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP/gRPC log exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, errors.New("unsupported OTLP protocol " + protocol + " (expected: http, grpc)")
	}
}

// severity maps slog levels onto the minsev threshold.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}
