package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServerExposesMetrics(t *testing.T) {
	CacheLookups.WithLabelValues("hit").Inc()
	ParsedBytes.WithLabelValues("test").Add(3)

	addr := freeAddr(t)
	srv := NewServer(addr)
	srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		body = string(data)
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Contains(t, body, `fusor_cache_lookups_total{result="hit"}`)
	assert.Contains(t, body, `fusor_parsed_bytes_total{language="test"}`)
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer("127.0.0.1:0").Stop(context.Background()))
}
