package orderbot

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("services/orderbot")
