// Package directory looks up user accounts in a remote spreadsheet-like
// user directory. Each row is [login, password, expiry]; an optional header
// row is skipped. Rows are read through a TTL cache so every request does
// not hit the remote API.
package directory

import (
	"context"
	"strings"
	"time"
)

// RowFetcher retrieves the raw directory rows from the backing store.
type RowFetcher interface {
	FetchRows(ctx context.Context) ([][]string, error)
}

// Account is a resolved directory entry. Expiry is nil when the row has no
// (or an unparsable) expiry date.
type Account struct {
	Login    string
	Expiry   *time.Time
	DaysLeft int
}

// Expired reports whether the account's access has lapsed.
func (a Account) Expired() bool {
	return a.Expiry != nil && a.DaysLeft < 0
}

// Directory authenticates logins against the remote row set.
type Directory struct {
	fetcher RowFetcher
	cache   *Cache
	now     func() time.Time
}

// New creates a directory over the given fetcher with a TTL-bounded cache.
func New(fetcher RowFetcher, ttl time.Duration) *Directory {
	return &Directory{fetcher: fetcher, cache: NewCache(ttl), now: time.Now}
}

// NewWithClock is for tests that need deterministic expiry math.
func NewWithClock(fetcher RowFetcher, ttl time.Duration, now func() time.Time) *Directory {
	return &Directory{fetcher: fetcher, cache: NewCacheWithClock(ttl, now), now: now}
}

// Authenticate checks login and password against the directory. It returns
// (nil, nil) when no row matches; a match is returned even when expired so
// the caller can present the expiry state.
func (d *Directory) Authenticate(ctx context.Context, login, password string) (*Account, error) {
	rows, err := d.cache.Rows(ctx, d.fetcher.FetchRows)
	if err != nil {
		return nil, err
	}
	for _, row := range dataRows(rows) {
		if cell(row, 0) == login && cell(row, 1) == password {
			return d.account(row), nil
		}
	}
	return nil, nil
}

// Lookup returns the account for a login without checking the password, or
// (nil, nil) when the login is unknown.
func (d *Directory) Lookup(ctx context.Context, login string) (*Account, error) {
	rows, err := d.cache.Rows(ctx, d.fetcher.FetchRows)
	if err != nil {
		return nil, err
	}
	for _, row := range dataRows(rows) {
		if cell(row, 0) == login {
			return d.account(row), nil
		}
	}
	return nil, nil
}

func (d *Directory) account(row []string) *Account {
	acc := &Account{Login: cell(row, 0)}
	if expiry := parseExpiry(cell(row, 2)); expiry != nil {
		acc.Expiry = expiry
		today := d.now().Truncate(24 * time.Hour)
		acc.DaysLeft = int(expiry.Sub(today).Hours() / 24)
	}
	return acc
}

// dataRows skips a leading header row when the sheet has one. The
// heuristic matches the labels authors actually use.
func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	for _, c := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "login", "логин", "username", "password", "пароль":
			return rows[1:]
		}
	}
	return rows
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// expiryLayouts are the date formats seen in real directory sheets.
var expiryLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"01/02/2006",
}

func parseExpiry(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
