// Package greenjobs is a typed client for the youth green jobs platform API.
// It layers fetchkit's caching, deduplication, retry and optimistic update
// primitives over the platform's REST endpoints.
package greenjobs

import "time"

// Product is an eco-product marketplace listing.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	EcoPoints   int     `json:"eco_points"`
	Category    string  `json:"category"`
	VendorName  string  `json:"vendor_name"`
	InStock     bool    `json:"in_stock"`
	Favorite    bool    `json:"is_favorite"`
}

// WasteReport is a citizen-submitted waste sighting or collection request.
type WasteReport struct {
	ID          string    `json:"id"`
	WasteType   string    `json:"waste_type"`
	EstimatedKg float64   `json:"estimated_kg"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	ReportedAt  time.Time `json:"reported_at"`
}

// CollectionPoint is a drop-off site for sorted waste.
type CollectionPoint struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	AcceptedTypes []string `json:"accepted_types"`
}

// Wallet holds a user's eco-point balance.
type Wallet struct {
	Points       int `json:"points"`
	TotalEarned  int `json:"total_earned"`
	TotalSpent   int `json:"total_spent"`
	PendingGrant int `json:"pending_grant"`
}

// Transaction is one wallet ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Points      int       `json:"points"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Dashboard aggregates the wallet screen's data sources.
type Dashboard struct {
	Wallet       Wallet        `json:"wallet"`
	Transactions []Transaction `json:"transactions"`
	Reports      []WasteReport `json:"reports"`
}
