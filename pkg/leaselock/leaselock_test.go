package leaselock

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func TestNormalizeOptions(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "defaults",
			in:   Options{},
			want: Options{TTL: 5 * time.Minute, RenewEvery: 150 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "renew not shorter than ttl",
			in:   Options{TTL: 10 * time.Second, RenewEvery: 10 * time.Second},
			want: Options{TTL: 10 * time.Second, RenewEvery: 5 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "renew at least one second",
			in:   Options{TTL: time.Second},
			want: Options{TTL: time.Second, RenewEvery: time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "negative jitter",
			in:   Options{TTL: time.Minute, RenewEvery: 20 * time.Second, WaitJitter: -1},
			want: Options{TTL: time.Minute, RenewEvery: 20 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeOptions(tt.in); got != tt.want {
				t.Fatalf("normalizeOptions(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProductKey(t *testing.T) {
	if got := ProductKey(42); got != "product_analysis:42" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestAcquire_BusyWithoutWait(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_locks")).
		WithArgs("product_analysis:1", pgxmock.AnyArg(), int64(60000)).
		WillReturnRows(pgxmock.NewRows([]string{"lock_key"}))

	_, err = New(mock).Acquire(context.Background(), ProductKey(1), Options{TTL: time.Minute})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestProductLocker_RunsUnderLease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_locks")).
		WithArgs("product_analysis:7", pgxmock.AnyArg(), int64(60000)).
		WillReturnRows(pgxmock.NewRows([]string{"lock_key"}).AddRow("product_analysis:7"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM app_locks")).
		WithArgs("product_analysis:7", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ran := false
	locker := NewProductLocker(New(mock), time.Minute)
	err = locker.WithLock(context.Background(), 7, func(ctx context.Context) error {
		ran = true
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatalf("fn was not called")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
