package fetch

import (
	"errors"
	"testing"
)

func TestClassify_StatusCodes(t *testing.T) {
	// WHAT: 4xx is durable, 5xx is transient, everything else falls back
	// to the error message.
	cases := []struct {
		status int
		msg    string
		want   ErrorClass
	}{
		{404, "", ClassDurable},
		{403, "", ClassDurable},
		{500, "", ClassTransient},
		{503, "", ClassTransient},
		{0, "dial tcp: connection refused", ClassTransient},
		{0, "context deadline exceeded", ClassTransient},
		{0, "lookup host: no such host", ClassTransient},
		{0, "something odd happened", ClassUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.status, c.msg); got != c.want {
			t.Errorf("Classify(%d, %q) = %s, want %s", c.status, c.msg, got, c.want)
		}
	}
}

func TestErrorClass_Retryable(t *testing.T) {
	// WHAT: only transient failures are worth retrying.
	if !ClassTransient.Retryable() {
		t.Fatal("transient must be retryable")
	}
	if ClassDurable.Retryable() || ClassUnknown.Retryable() {
		t.Fatal("durable and unknown must not be retryable")
	}
}

func TestFetchError_Class(t *testing.T) {
	// WHAT: a FetchError classifies itself from its status, falling back
	// to its wrapped error.
	e := &FetchError{URL: "x", StatusCode: 404, Err: errors.New("http 404")}
	if e.Class() != ClassDurable {
		t.Fatalf("class = %s, want durable", e.Class())
	}
	e = &FetchError{URL: "x", Err: errors.New("read tcp: connection reset by peer")}
	if e.Class() != ClassTransient {
		t.Fatalf("class = %s, want transient", e.Class())
	}
}
