// Package expiry rejects requests whose caller-declared deadline has passed.
package expiry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joeydtaylor/enroute/pkg/chain"
)

// Config describes where a request carries its deadline. Header values are
// milliseconds since the Unix epoch (AbsoluteHeader, StartHeader) or a
// duration in milliseconds (TimeoutHeader).
type Config struct {
	AbsoluteHeader string
	StartHeader    string
	TimeoutHeader  string

	// Now is used instead of time.Now when set.
	Now func() time.Time
}

type expiredError struct{ at time.Time }

func (e expiredError) Error() string {
	if e.at.IsZero() {
		return "request has expired"
	}
	return "request expired at " + e.at.UTC().Format(time.RFC3339Nano)
}

func (expiredError) StatusCode() int { return http.StatusGatewayTimeout }

func (expiredError) Is(target error) bool { return target == ErrExpired }

// ErrExpired matches every error the guard returns.
var ErrExpired = errors.New("request has expired")

// Validate reports configurations that can never expire anything useful.
func (c Config) Validate() error {
	if c.AbsoluteHeader == "" && (c.StartHeader == "") != (c.TimeoutHeader == "") {
		return errors.New("expiry: start and timeout headers must be set together")
	}
	return nil
}

// Guard returns the step inserted between the steps of every route chain.
func (c Config) Guard() chain.Step {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return func(_ http.ResponseWriter, r *http.Request) error {
		if err := r.Context().Err(); errors.Is(err, context.DeadlineExceeded) {
			return expiredError{}
		}
		if at, ok := c.deadline(r); ok && !now().Before(at) {
			return expiredError{at: at}
		}
		return nil
	}
}

func (c Config) deadline(r *http.Request) (time.Time, bool) {
	if c.AbsoluteHeader != "" {
		if ms, ok := millis(r.Header.Get(c.AbsoluteHeader)); ok {
			return time.UnixMilli(ms), true
		}
	}
	if c.StartHeader != "" && c.TimeoutHeader != "" {
		start, ok1 := millis(r.Header.Get(c.StartHeader))
		timeout, ok2 := millis(r.Header.Get(c.TimeoutHeader))
		if ok1 && ok2 {
			return time.UnixMilli(start).Add(time.Duration(timeout) * time.Millisecond), true
		}
	}
	return time.Time{}, false
}

func millis(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
