package notification

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"care_reminder_bot/internal/domain/care"
)

func TestRender_Golden(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		ctx  TemplateContext
	}{
		{"water_due", KindWaterDue, CycleContext{SubjectName: "Monstera", Action: care.ActionWater}},
		{"water_overdue_3", KindWaterOverdue, CycleContext{SubjectName: "Monstera", IsOverdue: true, OverdueDays: 3}},
		{"water_overdue_1", KindWaterOverdue, CycleContext{SubjectName: "Monstera", IsOverdue: true, OverdueDays: 1}},
		{"nutrient_reminder", KindNutrientReminder, CycleContext{SubjectName: "Fern", IsReminder: true}},
		{"nutrient_due_nil", KindNutrientDue, nil},
		{"like", KindLike, SocialContext{ActorName: "Mina", ContentKind: "post", ContentTitle: "Spring repot"}},
		{"comment_missing", KindComment, SocialContext{}},
		{"upload_success", KindUploadSuccess, UploadContext{ContentKind: "photo", FileName: "fern.jpg"}},
		{"upload_failure", KindUploadFailure, UploadContext{FileName: "big.png", Reason: "file too large"}},
		{"moderation", KindModerationStatus, ModerationContext{ContentKind: "article", ContentTitle: "Care guide", Status: "Rejected", Reason: "missing sources"}},
		{"broadcast", KindBroadcast, BroadcastContext{Title: "Maintenance", Message: "The app is offline tonight."}},
		{"broadcast_empty", KindBroadcast, nil},
		{"level_up", KindLevelUp, LevelUpContext{Level: 5, LevelName: "Green Thumb"}},
		{"new_follower", KindNewFollower, FollowContext{ActorName: "Jun"}},
		{"unknown", Kind("SOMETHING_ELSE"), nil},
		{"mismatched", KindLike, CycleContext{SubjectName: "x"}},
	}

	var buf bytes.Buffer
	for _, tc := range cases {
		r := Render(tc.kind, tc.ctx)
		fmt.Fprintf(&buf, "%s | %s | %s\n", tc.name, r.Title, r.Message)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "render", buf.Bytes())
}

func TestRender_OverdueFlagUpgradesDueKind(t *testing.T) {
	r := Render(KindWaterDue, CycleContext{SubjectName: "Ficus", IsOverdue: true, OverdueDays: 2})
	assert.Equal(t, "Watering overdue", r.Title)
	assert.Equal(t, "Ficus is 2 days overdue for watering.", r.Message)
}

func TestRender_NeverEmpty(t *testing.T) {
	kinds := []Kind{
		KindWaterDue, KindWaterOverdue, KindWaterReminder,
		KindNutrientDue, KindNutrientOverdue, KindNutrientReminder,
		KindLike, KindComment, KindUploadSuccess, KindUploadFailure,
		KindModerationStatus, KindBroadcast, KindLevelUp, KindNewFollower,
		Kind(""), Kind("???"),
	}
	contexts := []TemplateContext{nil, CycleContext{}, SocialContext{}, UploadContext{}, ModerationContext{},
		BroadcastContext{}, LevelUpContext{}, FollowContext{}}

	for _, k := range kinds {
		for _, c := range contexts {
			r := Render(k, c)
			assert.NotEmpty(t, r.Title, "kind %q ctx %T", k, c)
			assert.NotEmpty(t, r.Message, "kind %q ctx %T", k, c)
		}
	}
}

func TestCycleKind_RoundTrip(t *testing.T) {
	for _, action := range care.AllActionKinds() {
		for _, cat := range Categories() {
			k, ok := CycleKind(action, cat)
			assert.True(t, ok)
			gotAction, gotCat, ok := k.CycleParts()
			assert.True(t, ok)
			assert.Equal(t, action, gotAction)
			assert.Equal(t, cat, gotCat)
			assert.True(t, k.IsCycle())
		}
	}
	assert.False(t, KindLike.IsCycle())
}
