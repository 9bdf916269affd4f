// Package observability records lifecycle counters for the submission
// queue and the deletion pipeline on an OpenTelemetry meter.
//
// Register [MetricsExtension] with the ext registry. Counters carry the
// action kind where one applies, so dashboards can split clock-in from
// clock-out.
package observability
