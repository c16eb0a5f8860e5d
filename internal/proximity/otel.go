package proximity

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/geomemo/geomemo/internal/proximity"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
