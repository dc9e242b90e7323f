package generation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName scopes the generation counters.
const InstrumentationName = "github.com/neatdrive/simulator/internal/generation"

func meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}
