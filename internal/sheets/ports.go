// Package sheets mirrors each user's expenses into a spreadsheet tab.
package sheets

import "context"

// Mirror receives a user's complete export, header excluded, and replaces
// the content of the user's tab with it.
type Mirror interface {
	SyncUser(ctx context.Context, tab string, rows [][]string) error
	// DeleteUser removes the tab. A missing tab is not an error.
	DeleteUser(ctx context.Context, tab string) error
}

// TabName is the tab that holds a user's rows.
func TabName(userID string) string {
	return "gota-" + userID
}
