package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ceyewan/srvd/xerrors"
)

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(DefaultConfig("srvctl")))

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil", nil},
		{"no service", &Config{Endpoint: "localhost:4317"}},
		{"no endpoint", &Config{ServiceName: "s"}},
		{"sampler", &Config{ServiceName: "s", Endpoint: "e", Sampler: 1.5}},
		{"batcher", &Config{ServiceName: "s", Endpoint: "e", Batcher: "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, validateConfig(tt.cfg), xerrors.ErrInvalidInput)
		})
	}
}

func TestInitDisabledUsesDiscard(t *testing.T) {
	shutdown, err := Init(&Config{ServiceName: "srvctl"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitInvalid(t *testing.T) {
	_, err := Init(nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestGinMiddlewareRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("srvctl"))
	router.GET("/v1/domains", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/domains", nil))
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/v1/domains")
}

func TestGRPCDialOption(t *testing.T) {
	assert.NotNil(t, GRPCDialOption())
	assert.NotNil(t, GRPCClientStatsHandler())
}
