// Package telemetry provides logging, tracing and metrics for suite runs.
//
// Logging uses zerolog with a console writer on stderr by default, so log
// lines never interleave with the remote shell output on stdout.
//
// Tracing uses OpenTelemetry with an stdout or OTLP/gRPC exporter. One span
// covers a run and one child span covers each unit.
//
// Metrics use a private Prometheus registry. Runs are short lived, so the
// registry is written once to a node_exporter textfile instead of being
// served over HTTP:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.Enabled = true
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/froyo.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
package telemetry
