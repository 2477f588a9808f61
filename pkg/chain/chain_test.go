package chain

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(trace *[]string, name string) Step {
	return func(http.ResponseWriter, *http.Request) error {
		*trace = append(*trace, name)
		return nil
	}
}

func TestRunOrderAndHalt(t *testing.T) {
	var trace []string
	steps := []Step{
		record(&trace, "a"),
		func(http.ResponseWriter, *http.Request) error {
			trace = append(trace, "b")
			return ErrHalt
		},
		record(&trace, "c"),
	}
	err := Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestRunStopsOnError(t *testing.T) {
	var trace []string
	boom := errors.New("boom")
	steps := []Step{
		record(&trace, "a"),
		nil,
		func(http.ResponseWriter, *http.Request) error { return fmt.Errorf("wrapped: %w", boom) },
		record(&trace, "c"),
	}
	err := Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), steps)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, trace)
}

func TestRunWrappedHaltIsQuiet(t *testing.T) {
	steps := []Step{func(http.ResponseWriter, *http.Request) error { return fmt.Errorf("done: %w", ErrHalt) }}
	assert.NoError(t, Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), steps))
}

func TestInterleave(t *testing.T) {
	var trace []string
	guard := record(&trace, "g")
	steps := Interleave([]Step{record(&trace, "a"), record(&trace, "b"), record(&trace, "c")}, guard)
	require.Len(t, steps, 5)

	require.NoError(t, Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), steps))
	assert.Equal(t, "a,g,b,g,c", strings.Join(trace, ","))
}

func TestInterleaveEdges(t *testing.T) {
	var trace []string
	guard := record(&trace, "g")

	assert.Empty(t, Interleave(nil, guard))
	assert.Len(t, Interleave([]Step{record(&trace, "a")}, guard), 1)
	assert.Len(t, Interleave([]Step{record(&trace, "a"), record(&trace, "b")}, nil), 2)

	in := []Step{record(&trace, "a")}
	out := Interleave(in, nil)
	out[0] = nil
	assert.NotNil(t, in[0], "interleave must not alias its input")
}

func TestBuild(t *testing.T) {
	var trace []string
	steps := Build(
		[]Step{record(&trace, "pre1"), record(&trace, "pre2")},
		[]Step{record(&trace, "h")},
		[]Step{record(&trace, "post")},
		record(&trace, "exp"),
	)
	require.NoError(t, Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), steps))
	assert.Equal(t, "pre1,exp,pre2,exp,h,exp,post", strings.Join(trace, ","))
}

type coded struct{ code int }

func (c coded) Error() string   { return "coded" }
func (c coded) StatusCode() int { return c.code }

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 504, StatusOf(fmt.Errorf("x: %w", coded{504}), 500))
	assert.Equal(t, 500, StatusOf(coded{0}, 500))
	assert.Equal(t, 500, StatusOf(errors.New("plain"), 500))
}
