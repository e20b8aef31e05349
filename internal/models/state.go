package models

// State is the lifecycle state of an entity, derived from its sys.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateChanged   State = "changed"
	StateArchived  State = "archived"
	StateDeleted   State = "deleted"
)

// Action is a lifecycle action performed against the backend.
type Action string

const (
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
	ActionDelete    Action = "delete"
)

// DeriveState вычисляет состояние только из sys, отдельного поля состояния нет.
// Приоритет: deleted > archived > draft > changed > published.
func DeriveState(sys Sys) State {
	switch {
	case sys.DeletedVersion != nil:
		return StateDeleted
	case sys.ArchivedVersion != nil:
		return StateArchived
	case sys.PublishedVersion == nil:
		return StateDraft
	case sys.Version > *sys.PublishedVersion:
		return StateChanged
	default:
		return StatePublished
	}
}

// Allowed reports whether action may be performed from state s.
//
// Publish from Archived is allowed: the backend unarchives and publishes in
// a single version bump. Archive requires the entity to be unpublished.
func (s State) Allowed(action Action) bool {
	switch action {
	case ActionPublish:
		return s == StateDraft || s == StateChanged || s == StateArchived
	case ActionUnpublish:
		return s == StatePublished || s == StateChanged
	case ActionArchive:
		return s == StateDraft
	case ActionUnarchive:
		return s == StateArchived
	case ActionDelete:
		return s != StateDeleted
	}
	return false
}
