// Package ingest orchestrates one upload batch: validation, archive
// expansion, regular file transfer, destination resolution and the
// completion notification. Only one batch runs per Service at a time.
package ingest
