// Package store is the persistence gateway for measurement data.
//
// It speaks to the relational store through database/sql with three
// dialects: sqlite (modernc.org/sqlite, used for local installs and tests),
// mysql (MariaDB with spatial types) and pgx (PostgreSQL with PostGIS).
// Geometry columns are exchanged as WKT; the dialect decides whether the
// database converts them with ST_GeomFromText/ST_AsText or stores the text.
//
// Every batch write runs in its own transaction so a batch is either fully
// present or absent. No transaction spans batches; callers compensate with
// the Delete* operations when a later batch fails.
package store
