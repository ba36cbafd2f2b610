// Package models declares the persisted entities of the microblog.
package models

// All lists every model for auto-migration.
func All() []any {
	return []any{&User{}, &Post{}, &Follow{}}
}
