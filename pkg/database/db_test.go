package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestDSNQuotesValues(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "ems",
		Password: `p@ss word'\`,
		Database: "ems",
		SSLMode:  "require",
	}

	want := `host='db.internal' port=5433 user='ems' password='p@ss word\'\\' dbname='ems' sslmode='require'`
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() =\n%s\nwant\n%s", got, want)
	}
}

func TestOpenGormRejectsNil(t *testing.T) {
	if _, err := OpenGorm(nil, nil); err == nil {
		t.Fatalf("expected error for nil connection")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("dial tcp: connection refused"), true},
		{fmt.Errorf("ping: %w", &pq.Error{Code: "57P03"}), true},
		{fmt.Errorf("ping: %w", &pq.Error{Code: "28P01"}), false},
		{&pq.Error{Code: "3D000"}, false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
