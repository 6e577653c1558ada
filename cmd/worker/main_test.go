package main

import (
	"errors"
	"testing"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{errors.New("list routes: dial tcp: connection refused"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("decode payload: unexpected EOF"), false},
		{errors.New("relation \"routes\" does not exist"), false},
	}

	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.expected {
			t.Errorf("isRetryableError(%q) = %v, want %v", tt.err, got, tt.expected)
		}
	}
}
