package expiry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/joeydtaylor/enroute/pkg/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.UnixMilli(1_700_000_000_000)

func req(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/foo", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func ms(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func TestAbsoluteHeader(t *testing.T) {
	g := Config{AbsoluteHeader: "X-Expires", Now: func() time.Time { return fixed }}.Guard()

	assert.NoError(t, g(httptest.NewRecorder(), req(map[string]string{"X-Expires": ms(fixed.Add(time.Second))})))

	err := g(httptest.NewRecorder(), req(map[string]string{"X-Expires": ms(fixed.Add(-time.Second))}))
	require.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, http.StatusGatewayTimeout, chain.StatusOf(err, 500))

	assert.NoError(t, g(httptest.NewRecorder(), req(nil)), "missing header never expires")
	assert.NoError(t, g(httptest.NewRecorder(), req(map[string]string{"X-Expires": "soon"})))
}

func TestStartAndTimeoutHeaders(t *testing.T) {
	g := Config{StartHeader: "X-Start", TimeoutHeader: "X-Timeout", Now: func() time.Time { return fixed }}.Guard()

	start := fixed.Add(-500 * time.Millisecond)
	assert.NoError(t, g(httptest.NewRecorder(), req(map[string]string{"X-Start": ms(start), "X-Timeout": "1000"})))
	assert.ErrorIs(t, g(httptest.NewRecorder(), req(map[string]string{"X-Start": ms(start), "X-Timeout": "100"})), ErrExpired)
	assert.NoError(t, g(httptest.NewRecorder(), req(map[string]string{"X-Start": ms(start)})))
}

func TestContextDeadline(t *testing.T) {
	g := Config{}.Guard()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	r := req(nil).WithContext(ctx)
	assert.ErrorIs(t, g(httptest.NewRecorder(), r), ErrExpired)

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	assert.NoError(t, g(httptest.NewRecorder(), req(nil).WithContext(ctx2)), "plain cancellation is not expiry")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{AbsoluteHeader: "X"}.Validate())
	assert.NoError(t, Config{StartHeader: "S", TimeoutHeader: "T"}.Validate())
	assert.Error(t, Config{StartHeader: "S"}.Validate())
}

func TestGuardBetweenSteps(t *testing.T) {
	now := fixed
	g := Config{AbsoluteHeader: "X-Expires", Now: func() time.Time { return now }}.Guard()

	var ran []string
	steps := chain.Build(nil, []chain.Step{
		func(http.ResponseWriter, *http.Request) error {
			ran = append(ran, "first")
			now = now.Add(2 * time.Second)
			return nil
		},
		func(http.ResponseWriter, *http.Request) error {
			ran = append(ran, "second")
			return nil
		},
	}, nil, g)

	err := chain.Run(httptest.NewRecorder(), req(map[string]string{"X-Expires": ms(fixed.Add(time.Second))}), steps)
	require.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, []string{"first"}, ran)
}

func TestWithTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := WithTimeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}), time.Minute)
	h.ServeHTTP(httptest.NewRecorder(), req(nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	plain := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, WithTimeout(plain, 0))
}
