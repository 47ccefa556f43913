// Package telemetry semantic conventions for scanner observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys follow OpenTelemetry naming: namespace.attribute_name.
const (
	AttrVenue       = attribute.Key("venue")
	AttrPair        = attribute.Key("pair")
	AttrStage       = attribute.Key("stage")
	AttrOperation   = attribute.Key("operation")
	AttrReason      = attribute.Key("reason")
	AttrResult      = attribute.Key("result")
	AttrDirection   = attribute.Key("direction")
	AttrErrorCode   = attribute.Key("error.code")
	AttrEnvironment = attribute.Key("environment")
	AttrWorker      = attribute.Key("worker")
)

// Stage values.
const (
	StageNormalizer   = "normalizer"
	StageScanner      = "scanner"
	StageDepthChecker = "depth_checker"
	StageCollector    = "collector"
)

// Result values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultConfirmed = "confirmed"
	ResultRejected  = "rejected"
)

// StageAttributes returns common attributes for per-stage cycle metrics.
func StageAttributes(environment, stage, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrStage.String(stage),
		AttrResult.String(result),
	}
}

// VenueAttributes returns attributes for venue fetch metrics.
func VenueAttributes(environment, venue, operation, errorCode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrVenue.String(venue),
		AttrOperation.String(operation),
		AttrErrorCode.String(errorCode),
	}
}

// SignalAttributes returns attributes for emitted spread signals.
func SignalAttributes(environment, direction string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrDirection.String(direction),
	}
}

// DepthAttributes returns attributes for depth-check outcomes.
func DepthAttributes(environment, result, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrResult.String(result),
		AttrReason.String(reason),
	}
}
