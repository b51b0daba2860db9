// Package store persists dashboard tasks and their run logs in SQLite.
package store
