package resource

// ApplyStatus is the outcome of an apply or delete.
type ApplyStatus string

const (
	StatusCreated   ApplyStatus = "created"
	StatusChanged   ApplyStatus = "changed"
	StatusUnchanged ApplyStatus = "unchanged"
	StatusDeleted   ApplyStatus = "deleted"
)
