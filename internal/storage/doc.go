package storage

// Package storage owns the gradebook schema and the unit-of-work session
// used for every read and write. SQLite and PostgreSQL are supported through
// database/sql; repositories are bound to a session and never to the pool.
