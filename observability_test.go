package smbclient

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	return byName
}

func counterValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	if mf == nil {
		return 0
	}
next:
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				continue next
			}
		}
		return m.GetCounter().GetValue()
	}
	return 0
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	srv := newTestServer(t)
	c := connectTest(t, srv, &Config{Metrics: reg})
	ctx := context.Background()

	data := randomBytes(t, 300*1024)
	require.NoError(t, c.Upload(ctx, data, "m.bin", nil))
	_, err := c.Download(ctx, "m.bin")
	require.NoError(t, err)
	_, err = c.FileStat(ctx, "missing")
	require.Error(t, err)

	mfs := gather(t, reg)

	assert.Equal(t, float64(len(data)), counterValue(mfs["smbclient_bytes_total"], map[string]string{"direction": "write"}))
	assert.Equal(t, float64(len(data)), counterValue(mfs["smbclient_bytes_total"], map[string]string{"direction": "read"}))
	assert.Equal(t, float64(1), counterValue(mfs["smbclient_requests_total"], map[string]string{"command": "NEGOTIATE", "status": "STATUS_SUCCESS"}))
	assert.Equal(t, float64(1), counterValue(mfs["smbclient_requests_total"], map[string]string{"command": "CREATE", "status": "STATUS_OBJECT_NAME_NOT_FOUND"}))
	assert.NotZero(t, counterValue(mfs["smbclient_requests_total"], map[string]string{"command": "READ", "status": "STATUS_SUCCESS"}))

	require.Contains(t, mfs, "smbclient_credit_balance")
	assert.Positive(t, mfs["smbclient_credit_balance"].GetMetric()[0].GetGauge().GetValue())

	require.NoError(t, c.Close())
	mfs = gather(t, reg)
	assert.Equal(t, float64(1), counterValue(mfs["smbclient_disconnects_total"], nil))
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	srv1 := newTestServer(t)
	srv2 := newTestServer(t)

	dialTest(t, srv1, &Config{Metrics: reg})
	dialTest(t, srv2, &Config{Metrics: reg})

	mfs := gather(t, reg)
	assert.Equal(t, float64(2), counterValue(mfs["smbclient_requests_total"], map[string]string{"command": "NEGOTIATE"}))
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	srv := newTestServer(t)
	c := connectTest(t, srv, &Config{TracerProvider: tp})
	ctx := context.Background()

	require.NoError(t, c.CreateDirectory(ctx, "traced"))
	assert.Error(t, c.DeleteDirectory(ctx, "nothing"))

	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range sr.Ended() {
		spans[s.Name()] = s
	}

	for _, name := range []string{"smb.negotiate", "smb.login", "smb.tree_connect", "smb.create_directory", "smb.delete_directory"} {
		assert.Contains(t, spans, name)
	}

	assert.Equal(t, codes.Unset, spans["smb.create_directory"].Status().Code)
	assert.Equal(t, codes.Error, spans["smb.delete_directory"].Status().Code)

	var path string
	for _, kv := range spans["smb.create_directory"].Attributes() {
		if kv.Key == attrPath {
			path = kv.Value.AsString()
		}
	}
	assert.Equal(t, "traced", path)
}
