package db

import (
	"context"
	"testing"
)

func TestNewPool_InvalidDSN(t *testing.T) {
	t.Parallel()

	if _, err := NewPool(context.Background(), "postgres://%zz"); err == nil {
		t.Fatalf("expected parse error")
	}
}
