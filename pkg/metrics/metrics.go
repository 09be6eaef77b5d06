package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
	"golang.org/x/sys/unix"
)

var messageTypeNames = map[uint16]string{
	unix.RTM_NEWLINK:  "newlink",
	unix.RTM_NEWADDR:  "newaddr",
	unix.RTM_NEWROUTE: "newroute",
}

// Metrics holds all Prometheus metrics for nlroute
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	MessagesDecodedTotal   *prometheus.CounterVec
	KernelErrorsTotal      *prometheus.CounterVec
}

var _ rtnl.Observer = (*Metrics)(nil)

// New creates and registers all Prometheus metrics
func New(registry prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlroute_requests_total",
				Help: "Total number of rtnetlink requests issued",
			},
			[]string{"operation", "status"},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nlroute_request_duration_seconds",
				Help:    "Time from sending a request to receiving its last reply",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"operation"},
		),
		MessagesDecodedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlroute_messages_decoded_total",
				Help: "Total number of dump reply messages decoded",
			},
			[]string{"message_type"},
		),
		KernelErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlroute_kernel_errors_total",
				Help: "Total number of requests rejected by the kernel",
			},
			[]string{"errno"},
		),
	}

	collectors := []prometheus.Collector{
		metrics.RequestsTotal,
		metrics.RequestDurationSeconds,
		metrics.MessagesDecodedTotal,
		metrics.KernelErrorsTotal,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %v", err)
		}
	}

	return metrics, nil
}

// ObserveRequest records the outcome and duration of a netlink request. Kernel
// rejections are also counted by errno.
func (m *Metrics) ObserveRequest(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())

	var kernelErr *rtnl.KernelError
	if errors.As(err, &kernelErr) {
		name := unix.ErrnoName(kernelErr.Errno)
		if name == "" {
			name = strconv.Itoa(int(kernelErr.Errno))
		}
		m.KernelErrorsTotal.WithLabelValues(name).Inc()
	}
}

// ObserveMessage counts a decoded reply by message type.
func (m *Metrics) ObserveMessage(msgType uint16) {
	name, ok := messageTypeNames[msgType]
	if !ok {
		name = strconv.FormatUint(uint64(msgType), 10)
	}

	m.MessagesDecodedTotal.WithLabelValues(name).Inc()
}

// WriteTextfile writes every metric in gatherer to path in the text exposition
// format, for collection by the node exporter's textfile collector.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %q: %w", path, err)
	}

	return nil
}
