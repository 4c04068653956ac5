// internal/domain/notification/shared_types.go
package notification

import "care_reminder_bot/internal/domain/care"

// Kind identifies the notification template and the deduplication key space.
type Kind string

// Care cycle kinds. Each action kind gets its own due/overdue/reminder kinds so
// that watering and fertilizing the same subject never deduplicate each other.
const (
	KindWaterDue         Kind = "WATER_DUE"
	KindWaterOverdue     Kind = "WATER_OVERDUE"
	KindWaterReminder    Kind = "WATER_REMINDER"
	KindNutrientDue      Kind = "NUTRIENT_DUE"
	KindNutrientOverdue  Kind = "NUTRIENT_OVERDUE"
	KindNutrientReminder Kind = "NUTRIENT_REMINDER"
)

// Social and system kinds, emitted by events rather than the sweep.
const (
	KindLike             Kind = "LIKE"
	KindComment          Kind = "COMMENT"
	KindUploadSuccess    Kind = "UPLOAD_SUCCESS"
	KindUploadFailure    Kind = "UPLOAD_FAILURE"
	KindModerationStatus Kind = "MODERATION_STATUS"
	KindBroadcast        Kind = "BROADCAST"
	KindLevelUp          Kind = "LEVEL_UP"
	KindNewFollower      Kind = "NEW_FOLLOWER"
)

// Category is the due-state bucket a sweep candidate falls into.
type Category string

const (
	CategoryDueToday Category = "due_today"
	CategoryOverdue  Category = "overdue"
	CategoryReminder Category = "reminder"
)

// Categories lists the sweep categories in reporting order.
func Categories() []Category {
	return []Category{CategoryDueToday, CategoryOverdue, CategoryReminder}
}

type cycleKindKey struct {
	action   care.ActionKind
	category Category
}

var cycleKinds = map[cycleKindKey]Kind{
	{care.ActionWater, CategoryDueToday}:    KindWaterDue,
	{care.ActionWater, CategoryOverdue}:     KindWaterOverdue,
	{care.ActionWater, CategoryReminder}:    KindWaterReminder,
	{care.ActionNutrient, CategoryDueToday}: KindNutrientDue,
	{care.ActionNutrient, CategoryOverdue}:  KindNutrientOverdue,
	{care.ActionNutrient, CategoryReminder}: KindNutrientReminder,
}

// CycleKind returns the notification kind for an action kind in a due category.
func CycleKind(action care.ActionKind, category Category) (Kind, bool) {
	k, ok := cycleKinds[cycleKindKey{action, category}]
	return k, ok
}

// CycleParts is the inverse of CycleKind. ok is false for non-cycle kinds.
func (k Kind) CycleParts() (action care.ActionKind, category Category, ok bool) {
	for key, v := range cycleKinds {
		if v == k {
			return key.action, key.category, true
		}
	}
	return "", "", false
}

// IsCycle reports whether k is produced by the scheduled sweep.
func (k Kind) IsCycle() bool {
	_, _, ok := k.CycleParts()
	return ok
}
