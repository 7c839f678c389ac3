// Package materialize turns item drafts into persisted library
// records: a parent item plus zero or more fetched attachments, placed
// at a resolved destination. Attachment fetches run concurrently but
// creation events are emitted parent-first; a failed fetch is a
// partial failure recorded on the attachment, never a failed save.
package materialize
