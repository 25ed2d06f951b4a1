package types

// Status is a type for the lifecycle status of a record in the database.
// Records are soft deleted for audit purposes and never removed.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
