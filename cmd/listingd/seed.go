package main

import (
	"context"

	"github.com/savan1304/FindMyLeaseApp/internal/server"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

var demoListings = []record.Record{
	record.New("1", map[string]any{"name": "House 1", "bedrooms": 3, "area": "120m²", "price": "$300,000"}),
	record.New("2", map[string]any{"name": "House 2", "bedrooms": 4, "area": "150m²", "price": "$450,000"}),
	record.New("3", map[string]any{"name": "House 3", "bedrooms": 2, "area": "100m²", "price": "$250,000"}),
}

func seedListings(ctx context.Context, backend server.Backend) error {
	for _, r := range demoListings {
		if _, err := backend.Put(ctx, live.ListingsKey, r); err != nil {
			return err
		}
	}
	return nil
}
