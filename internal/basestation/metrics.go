package basestation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/nerrad567/gray-logic-basestation/internal/protocol"
)

// MetricsNamespace prefixes every base station metric.
const MetricsNamespace = "basestation"

// Decode error kinds used as the "kind" label.
const (
	decodeKindUnknownType = "unknown_type"
	decodeKindTruncated   = "truncated"
	decodeKindInvalidText = "invalid_text"
	decodeKindTooLarge    = "too_large"
	decodeKindOther       = "other"
)

// Metrics holds the reactor and dispatcher counters.
//
// Metrics are registered on the Registerer passed to NewMetrics and are
// never exposed over the network; the process logs a summary at shutdown.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected prometheus.Counter
	ConnectionsActive   prometheus.Gauge

	BytesReceived prometheus.Counter
	BytesSent     prometheus.Counter

	PacketsReceived *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec

	ProtocolViolations     prometheus.Counter
	Registrations          prometheus.Counter
	DuplicateRegistrations prometheus.Counter
	EventsEmitted          prometheus.Counter
	SinkErrors             prometheus.Counter
}

// NewMetrics creates the metrics and registers them on reg.
// A nil reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		ConnectionsAccepted: counter("connections_accepted_total", "Device connections accepted"),
		ConnectionsRejected: counter("connections_rejected_total", "Device connections refused at the connection limit"),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "connections_active",
			Help:      "Device connections currently open",
		}),

		BytesReceived: counter("bytes_received_total", "Bytes read from device sockets"),
		BytesSent:     counter("bytes_sent_total", "Bytes written to device sockets"),

		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "packets_received_total",
			Help:      "Decoded packets by type",
		}, []string{"type"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Frames that failed to decode, by kind",
		}, []string{"kind"}),

		ProtocolViolations:     counter("protocol_violations_total", "Connections closed for protocol violations"),
		Registrations:          counter("registrations_total", "Device ids allocated"),
		DuplicateRegistrations: counter("duplicate_registrations_total", "Registrations answered with an existing id"),
		EventsEmitted:          counter("events_emitted_total", "Events handed to the event log"),
		SinkErrors:             counter("sink_errors_total", "Event log insert failures"),
	}
}

// decodeKind maps a decode error to its metric label.
func decodeKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		return decodeKindUnknownType
	case errors.Is(err, protocol.ErrTruncated):
		return decodeKindTruncated
	case errors.Is(err, protocol.ErrInvalidText):
		return decodeKindInvalidText
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return decodeKindTooLarge
	default:
		return decodeKindOther
	}
}

// Summary gathers g and returns "name{labels}" → value for every counter
// and gauge, plus the sorted keys.
func Summary(g prometheus.Gatherer) (values map[string]float64, keys []string, err error) {
	families, err := g.Gather()
	if err != nil {
		return nil, nil, fmt.Errorf("gathering metrics: %w", err)
	}

	values = make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				v = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			values[metricKey(mf.GetName(), m.GetLabel())] = v
		}
	}

	keys = make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return values, keys, nil
}

func metricKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	key := name + "{"
	for i, l := range labels {
		if i > 0 {
			key += ","
		}
		key += l.GetName() + "=" + l.GetValue()
	}
	return key + "}"
}
