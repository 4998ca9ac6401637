package domain

import "time"

// EventType defines the type of notification event Guerite can emit.
type EventType string

const (
	EventUpdated           EventType = "updated"
	EventUpdateFailed      EventType = "update_failed"
	EventRestarted         EventType = "restarted"
	EventRestartFailed     EventType = "restart_failed"
	EventRecreated         EventType = "recreated"
	EventRecreateFailed    EventType = "recreate_failed"
	EventHealthRestarted   EventType = "health_restarted"
	EventHealthRestartFail EventType = "health_restart_failed"
	EventPruned            EventType = "pruned"
	EventPruneFailed       EventType = "prune_failed"
	EventSkipped           EventType = "skipped"
	EventDetect            EventType = "detect"
	EventStartup           EventType = "startup"
	EventFailed            EventType = "failed"
)

// Category maps an EventType onto the coarse-grained categories
// GUERITE_NOTIFICATIONS filters on.
type Category string

const (
	CategoryUpdate   Category = "update"
	CategoryRestart  Category = "restart"
	CategoryRecreate Category = "recreate"
	CategoryHealth   Category = "health"
	CategoryStartup  Category = "startup"
	CategoryDetect   Category = "detect"
	CategoryPrune    Category = "prune"
	CategoryAll      Category = "all"
)

var eventCategories = map[EventType]Category{
	EventUpdated:           CategoryUpdate,
	EventUpdateFailed:      CategoryUpdate,
	EventRestarted:         CategoryRestart,
	EventRestartFailed:     CategoryRestart,
	EventRecreated:         CategoryRecreate,
	EventRecreateFailed:    CategoryRecreate,
	EventHealthRestarted:   CategoryHealth,
	EventHealthRestartFail: CategoryHealth,
	EventPruned:            CategoryPrune,
	EventPruneFailed:       CategoryPrune,
	EventDetect:            CategoryDetect,
	EventStartup:           CategoryStartup,
}

// CategoryOf reports the notification category an event type belongs to.
// Skipped and Failed events carry no category of their own; they inherit
// the category of the action kind that produced them via Event.Category.
func CategoryOf(t EventType) Category {
	return eventCategories[t]
}

// Event is a single notification-worthy occurrence, destined for the
// Notification Dispatcher.
type Event struct {
	ID            string
	Type          EventType
	Category      Category
	Timestamp     time.Time
	ContainerName string
	Action        ActionKind
	Title         string
	Message       string
	// ManualIntervention is set when a rollback itself failed and both
	// artifacts were left in place (§7).
	ManualIntervention bool
}
