package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source,
                      source_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    source_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    source_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertPingSQL = `
INSERT INTO pings (session_id,
                   timestamp,
                   sound_speed,
                   sample_rate,
                   sample0,
                   samples_per_beam,
                   encoding,
                   samples)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectPingTimeRangeSQL = `
SELECT
    COALESCE(MIN(timestamp), 0),
    COALESCE(MAX(timestamp), 0),
    COUNT(*)
FROM pings
WHERE
    session_id = ?`

	selectPingsSQL = `
SELECT
    timestamp,
    sound_speed,
    sample_rate,
    sample0,
    samples_per_beam,
    encoding,
    samples
FROM pings
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`
)

//go:embed schema.sql
var initSchemaSQL string

//go:embed indexes.sql
var initIndexesSQL string
