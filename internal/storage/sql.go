package storage

import (
	_ "embed"
)

const (
	insertObservationSQL = `
INSERT INTO observations (parent_id,
                          source_name,
                          start_time,
                          sample_interval,
                          frequency_origin,
                          frequency_increment,
                          channel_count,
                          coarse_channel_count,
                          integrations)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertIntegrationSQL = `
INSERT INTO integrations (observation_id,
                          idx,
                          power,
                          missing)
VALUES (?, ?, ?, ?)`

	selectObservationSQL = `
SELECT
    id,
    parent_id,
    created_at,
    source_name,
    start_time,
    sample_interval,
    frequency_origin,
    frequency_increment,
    channel_count,
    coarse_channel_count,
    integrations
FROM observations
WHERE
    id = ?`

	selectObservationsSQL = `
SELECT
    id,
    parent_id,
    created_at,
    source_name,
    start_time,
    sample_interval,
    frequency_origin,
    frequency_increment,
    channel_count,
    coarse_channel_count,
    integrations
FROM observations
ORDER BY id`

	selectIntegrationsSQL = `
SELECT
    idx,
    power,
    missing
FROM integrations
WHERE
    observation_id = ?
    AND idx >= ?
    AND idx < ?
ORDER BY idx`

	insertCleaningRunSQL = `
INSERT INTO cleaning_runs (id,
                           observation_id,
                           cleaned_observation_id,
                           mode,
                           params,
                           flagged_bins,
                           manual_bins,
                           cut_samples,
                           degenerate_channels)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectCleaningRunsSQL = `
SELECT
    id,
    observation_id,
    cleaned_observation_id,
    created_at,
    mode,
    params,
    flagged_bins,
    manual_bins,
    cut_samples,
    degenerate_channels
FROM cleaning_runs
WHERE
    observation_id = ?
ORDER BY created_at, id`
)

//go:embed schema.sql
var initSchemaSQL string
