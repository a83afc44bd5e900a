package domain

import "time"

// Point is a place of business (branch) holding per-currency balances.
// Points are owned by the back-office administration; the ledger only
// references them by ID.
type Point struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Currency is a tradeable unit referenced by ledger movements.
type Currency struct {
	ID     string
	Code   string
	Name   string
	Active bool
}
