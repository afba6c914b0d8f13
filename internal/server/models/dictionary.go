package models

import "time"

// Dictionary is a registered data-collection schema. The server stores the
// dictionary source verbatim; parsing and rendering it is the job of
// external collaborators.
type Dictionary struct {
	ID        int64
	Name      string
	Label     string
	Content   string
	CreatedAt time.Time
}
