package repository

import (
	"context"
)

// LeadStats aggregates the lead table for the dashboard.
type LeadStats struct {
	Total        int
	ByStatus     map[string]int
	ByTier       map[string]int
	ByState      map[string]int
	AverageScore *float64
}

func (r *Repository) Stats(ctx context.Context) (LeadStats, error) {
	stats := LeadStats{
		ByStatus: make(map[string]int),
		ByTier:   make(map[string]int),
		ByState:  make(map[string]int),
	}

	if err := r.pool.QueryRow(ctx, `
		SELECT count(*), avg(score) FILTER (WHERE score IS NOT NULL) FROM leads
	`).Scan(&stats.Total, &stats.AverageScore); err != nil {
		return LeadStats{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM leads GROUP BY status`)
	if err != nil {
		return LeadStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return LeadStats{}, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return LeadStats{}, err
	}

	tierRows, err := r.pool.Query(ctx, `
		SELECT tier, count(*) FROM leads WHERE tier IS NOT NULL GROUP BY tier
	`)
	if err != nil {
		return LeadStats{}, err
	}
	defer tierRows.Close()
	for tierRows.Next() {
		var tier string
		var count int
		if err := tierRows.Scan(&tier, &count); err != nil {
			return LeadStats{}, err
		}
		stats.ByTier[tier] = count
	}
	if err := tierRows.Err(); err != nil {
		return LeadStats{}, err
	}

	stateRows, err := r.pool.Query(ctx, `
		SELECT address_state, count(*) FROM leads WHERE address_state <> '' GROUP BY address_state
	`)
	if err != nil {
		return LeadStats{}, err
	}
	defer stateRows.Close()
	for stateRows.Next() {
		var state string
		var count int
		if err := stateRows.Scan(&state, &count); err != nil {
			return LeadStats{}, err
		}
		stats.ByState[state] = count
	}
	return stats, stateRows.Err()
}
