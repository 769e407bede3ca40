package ecoline

import (
	"ecoline-bot/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/ecoline")

var instrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables dumping of raw request/response pairs
// for clients created afterwards. Used in verbose mode only.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

func instrumentClient(client *resty.Client) {
	restyutil.InstrumentClient(client, tracer, instrumentOutput)
}
