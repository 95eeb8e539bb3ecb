package metrics_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/dialect"
	"github.com/syssam/neoql/metrics"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"denied", neoql.NewAuthorizationDeniedError("Post", "DELETE", ""), "FORBIDDEN"},
		{"invalid", neoql.NewInvalidArgumentError("movies", "first", "negative"), "INVALID_ARGUMENT"},
		{"unsupported", fmt.Errorf("wrapped: %w", neoql.NewUnsupportedSelectionError("movies.x", "unknown")), "UNSUPPORTED_SELECTION"},
		{"other", errors.New("boom"), "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, metrics.Kind(tt.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	err := fmt.Errorf("run: %w", dialect.NewError(dialect.CodeSyntaxError, "bad"))
	assert.Equal(t, dialect.CodeSyntaxError, metrics.StatusCode(err))
	assert.Equal(t, "unknown", metrics.StatusCode(errors.New("boom")))
}

func TestCollector(t *testing.T) {
	c := metrics.New(metrics.WithNamespace("test"))
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))
	require.Error(t, c.Register(reg), "second registration must conflict")

	c.ObserveCompile("query", time.Millisecond, nil)
	c.ObserveCompile("mutation", time.Millisecond, neoql.NewAuthorizationDeniedError("Post", "DELETE", ""))
	c.ObserveExec(time.Millisecond, dialect.NewError(dialect.CodeForbidden, ""))
	c.ObserveExec(time.Millisecond, nil)
	c.SchemaReloaded(nil)
	c.SchemaReloaded(errors.New("bad sdl"))

	count, err := testutil.GatherAndCount(reg, "test_compile_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, testutil.CollectAndCount(c.CompileFailures(), "test_compile_failures_total"))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.CompileFailures().WithLabelValues("FORBIDDEN")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.ExecFailures().WithLabelValues(dialect.CodeForbidden)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.SchemaReloads().WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.SchemaReloads().WithLabelValues("error")))
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.ObserveCompile("query", time.Second, errors.New("boom"))
		c.ObserveExec(time.Second, errors.New("boom"))
		c.SchemaReloaded(nil)
	})
}
