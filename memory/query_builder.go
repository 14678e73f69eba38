package memory

import (
	sq "github.com/Masterminds/squirrel"
)

// StatementBuilder returns a Squirrel StatementBuilder configured for SQLite.
// SQLite uses '?' as placeholders, which is Squirrel's default.
func StatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder
}

// selectMemoryColumns returns the standard column list for memories SELECT queries.
func selectMemoryColumns() []string {
	return []string{
		"id", "owner_id", "type", "content", "embedding", "importance",
		"core", "tags_json", "created_day", "last_accessed_day",
		"access_count", "created_at", "updated_at",
	}
}
