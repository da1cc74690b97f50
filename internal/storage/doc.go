// Package storage keeps an optional delivery history: one entry per record
// the broadcast monitor distributed, with the number of sessions that were
// registered at the time. Two backends exist: a JSON-lines file and SQLite.
package storage
