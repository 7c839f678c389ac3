// Package library persists the local reference library in SQLite:
// libraries, collections, items, creators, tags, and attachment rows.
//
// Attachments are modelled as items with an attachment row keyed by the
// item id, so a standalone imported PDF can live in a collection and be
// reparented under a recognized parent item later without changing its
// key.
package library
