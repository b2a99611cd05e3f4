package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubFetcher struct {
	rows  [][]string
	err   error
	calls int
}

func (s *stubFetcher) FetchRows(_ context.Context) ([][]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAuthenticate(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{rows: [][]string{
		{"Логин", "Пароль", "Срок"},
		{"anna", "secret", "2026-09-07"},
		{"boris", "qwerty", ""},
		{"vera", "old", "01.01.2020"},
	}}
	d := NewWithClock(fetcher, time.Minute, fixedClock(now))
	ctx := context.Background()

	acc, err := d.Authenticate(ctx, "anna", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if acc == nil {
		t.Fatal("expected account for valid credentials")
	}
	if acc.DaysLeft != 10 {
		t.Errorf("expected 10 days left, got %d", acc.DaysLeft)
	}
	if acc.Expired() {
		t.Error("account should not be expired")
	}

	// Wrong password.
	acc, err = d.Authenticate(ctx, "anna", "wrong")
	if err != nil || acc != nil {
		t.Errorf("expected (nil, nil) for wrong password, got (%v, %v)", acc, err)
	}

	// Unknown login.
	acc, err = d.Authenticate(ctx, "nobody", "x")
	if err != nil || acc != nil {
		t.Errorf("expected (nil, nil) for unknown login, got (%v, %v)", acc, err)
	}

	// No expiry date at all.
	acc, err = d.Authenticate(ctx, "boris", "qwerty")
	if err != nil || acc == nil {
		t.Fatalf("Authenticate boris: (%v, %v)", acc, err)
	}
	if acc.Expiry != nil {
		t.Error("expected nil expiry")
	}
	if acc.Expired() {
		t.Error("account without expiry never expires")
	}

	// Expired account still authenticates; caller decides what to do.
	acc, err = d.Authenticate(ctx, "vera", "old")
	if err != nil || acc == nil {
		t.Fatalf("Authenticate vera: (%v, %v)", acc, err)
	}
	if !acc.Expired() {
		t.Error("expected expired account")
	}
}

func TestHeaderRowSkippedOnlyWhenPresent(t *testing.T) {
	now := fixedClock(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))

	// No header row: the first row is data and must not be swallowed.
	fetcher := &stubFetcher{rows: [][]string{{"anna", "secret", ""}}}
	d := NewWithClock(fetcher, time.Minute, now)
	acc, err := d.Lookup(context.Background(), "anna")
	if err != nil || acc == nil {
		t.Fatalf("expected account, got (%v, %v)", acc, err)
	}
}

func TestCacheTTL(t *testing.T) {
	current := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	fetcher := &stubFetcher{rows: [][]string{{"anna", "secret", ""}}}
	d := NewWithClock(fetcher, time.Minute, clock)
	ctx := context.Background()

	for range 3 {
		if _, err := d.Lookup(ctx, "anna"); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected 1 fetch within TTL, got %d", fetcher.calls)
	}

	current = current.Add(time.Minute)
	if _, err := d.Lookup(ctx, "anna"); err != nil {
		t.Fatalf("Lookup after TTL: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", fetcher.calls)
	}
}

func TestFetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	fetcher := &stubFetcher{err: wantErr}
	d := New(fetcher, time.Minute)

	if _, err := d.Lookup(context.Background(), "anna"); !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	// A later call retries instead of caching the failure.
	fetcher.err = nil
	fetcher.rows = [][]string{{"anna", "secret", ""}}
	acc, err := d.Lookup(context.Background(), "anna")
	if err != nil || acc == nil {
		t.Fatalf("expected recovery after fetch error, got (%v, %v)", acc, err)
	}
}

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		fetchedAt time.Time
		want      bool
	}{
		{"never fetched", time.Time{}, true},
		{"fresh", now.Add(-30 * time.Second), false},
		{"exactly at ttl", now.Add(-time.Minute), true},
		{"old", now.Add(-time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(now, tt.fetchedAt, time.Minute); got != tt.want {
				t.Errorf("IsStale = %v, want %v", got, tt.want)
			}
		})
	}
}
