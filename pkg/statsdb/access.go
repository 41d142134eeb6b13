package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/NotCoffee418/usms_meter/pkg/statistics"
)

// Statistics returns every hourly row of a statistic ordered by start.
// An unknown statistic gives an empty slice.
func (s *Store) Statistics(ctx context.Context, statisticID string) ([]statistics.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT s.metadata_id, s.start_ts, s.state, s.\"sum\" "+
			"FROM statistics s "+
			"JOIN statistics_meta m ON m.id = s.metadata_id "+
			"WHERE m.statistic_id = ? "+
			"ORDER BY s.start_ts",
		statisticID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics for %s: %w", statisticID, err)
	}
	defer rows.Close()

	records := []statistics.Record{}
	for rows.Next() {
		var row statisticsRow
		if err := rows.Scan(&row.MetadataID, &row.StartTs, &row.State, &row.Sum); err != nil {
			return nil, err
		}
		records = append(records, statistics.RecordFromEpoch(float64(row.StartTs), row.State, row.Sum))
	}
	return records, rows.Err()
}

// Import upserts the metadata and the given rows of a statistic in one transaction.
func (s *Store) Import(ctx context.Context, meta statistics.Metadata, records []statistics.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var metadataID int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO statistics_meta "+
			"(statistic_id, source, unit_of_measurement, name, has_mean, has_sum) "+
			"VALUES (?, ?, ?, ?, ?, ?) "+
			"ON CONFLICT (statistic_id) DO UPDATE SET "+
			"source = excluded.source, "+
			"unit_of_measurement = excluded.unit_of_measurement, "+
			"name = excluded.name, "+
			"has_mean = excluded.has_mean, "+
			"has_sum = excluded.has_sum "+
			"RETURNING id",
		meta.StatisticID,
		meta.Source,
		meta.Unit,
		meta.Name,
		meta.HasMean,
		meta.HasSum,
	).Scan(&metadataID)
	if err != nil {
		return fmt.Errorf("failed to upsert metadata for %s: %w", meta.StatisticID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO statistics (metadata_id, start_ts, state, \"sum\") "+
			"VALUES (?, ?, ?, ?) "+
			"ON CONFLICT (metadata_id, start_ts) DO UPDATE SET "+
			"state = excluded.state, "+
			"\"sum\" = excluded.\"sum\"",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, metadataID, r.Start.Unix(), r.State, r.Sum); err != nil {
			return fmt.Errorf("failed to import statistic row %s for %s: %w", r.Start, meta.StatisticID, err)
		}
	}

	return tx.Commit()
}

// Metadata returns the stored metadata of a statistic, or nil if it was never imported.
func (s *Store) Metadata(ctx context.Context, statisticID string) (*statistics.Metadata, error) {
	var row statisticsMetaRow
	err := s.db.QueryRowContext(ctx,
		"SELECT id, statistic_id, source, unit_of_measurement, name, has_mean, has_sum "+
			"FROM statistics_meta WHERE statistic_id = ?",
		statisticID,
	).Scan(&row.ID, &row.StatisticID, &row.Source, &row.UnitOfMeasurement, &row.Name, &row.HasMean, &row.HasSum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &statistics.Metadata{
		StatisticID: row.StatisticID,
		Name:        row.Name,
		Source:      row.Source,
		Unit:        row.UnitOfMeasurement,
		HasMean:     row.HasMean,
		HasSum:      row.HasSum,
	}, nil
}
