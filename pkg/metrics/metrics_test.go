package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNew(t *testing.T) {
	metrics, err := New(prometheus.NewRegistry())
	require.NoError(t, err, "New() should not return an error")
	require.NotNil(t, metrics, "New() should return a non-nil Metrics struct")

	t.Run("all metrics are non-nil", func(t *testing.T) {
		v := reflect.ValueOf(metrics).Elem()
		typ := v.Type()

		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			fieldName := typ.Field(i).Name

			require.False(t, field.IsNil(), "metric field %s should not be nil", fieldName)
		}
	})
}

func TestNew_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	require.Error(t, err, "registering the same metrics twice should fail")
}

// readMetrics writes the registry through the textfile writer and returns the
// file contents.
func readMetrics(t *testing.T, registry *prometheus.Registry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nlroute.prom")
	require.NoError(t, WriteTextfile(path, registry))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(contents)
}

func TestMetrics_ObserveRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := New(registry)
	require.NoError(t, err)

	metrics.ObserveRequest("list routes", 2*time.Millisecond, nil)
	metrics.ObserveRequest("list routes", 3*time.Millisecond, nil)
	metrics.ObserveRequest("add address", time.Millisecond, fmt.Errorf("failed to add address: %w", &rtnl.KernelError{Errno: unix.EEXIST}))
	metrics.ObserveRequest("add route", time.Millisecond, errors.New("socket closed"))

	contents := readMetrics(t, registry)
	assert.Contains(t, contents, `nlroute_requests_total{operation="list routes",status="success"} 2`)
	assert.Contains(t, contents, `nlroute_requests_total{operation="add address",status="failure"} 1`)
	assert.Contains(t, contents, `nlroute_requests_total{operation="add route",status="failure"} 1`)
	assert.Contains(t, contents, `nlroute_request_duration_seconds_count{operation="list routes"} 2`)
	assert.Contains(t, contents, `nlroute_kernel_errors_total{errno="EEXIST"} 1`)
}

func TestMetrics_ObserveMessage(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := New(registry)
	require.NoError(t, err)

	for range 3 {
		metrics.ObserveMessage(unix.RTM_NEWROUTE)
	}
	metrics.ObserveMessage(unix.RTM_NEWLINK)
	metrics.ObserveMessage(unix.RTM_NEWNEIGH)

	contents := readMetrics(t, registry)
	assert.Contains(t, contents, `nlroute_messages_decoded_total{message_type="newroute"} 3`)
	assert.Contains(t, contents, `nlroute_messages_decoded_total{message_type="newlink"} 1`)
	assert.Contains(t, contents, fmt.Sprintf(`nlroute_messages_decoded_total{message_type="%d"} 1`, unix.RTM_NEWNEIGH))
}

func TestWriteTextfile_InvalidPath(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	err = WriteTextfile(filepath.Join(t.TempDir(), "missing", "nlroute.prom"), registry)
	require.Error(t, err)
}
