// Package pushcopy maps a notification's semantic type to display copy
// and shapes the data payload attached to a mobile push.
//
// Only the featured-workout category is tap-actionable: its payload is the
// only one that can carry a deep link. Nudge and engagement payloads omit
// the key structurally (there is no field to set), so no runtime check is
// needed to uphold the platform policy.
package pushcopy

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Content is the human-visible part of a push.
type Content struct {
	Title string
	Body  string
}

// Push is a shaped push payload ready to hand to the gateway.
type Push interface {
	Content() Content
	// Payload returns the data dict attached to the push.
	Payload() map[string]string
}

// FeaturedWorkoutPush is the only tap-actionable category.
type FeaturedWorkoutPush struct {
	Title    string
	Body     string
	DeepLink string
}

func (p FeaturedWorkoutPush) Content() Content { return Content{Title: p.Title, Body: p.Body} }

func (p FeaturedWorkoutPush) Payload() map[string]string {
	return map[string]string{
		"category":  "featured_workout",
		"deep_link": p.DeepLink,
	}
}

// NudgePush is a reminder-style push. Never clickable.
type NudgePush struct {
	Title string
	Body  string
}

func (p NudgePush) Content() Content { return Content{Title: p.Title, Body: p.Body} }

func (p NudgePush) Payload() map[string]string {
	return map[string]string{"category": "nudge"}
}

// EngagementPush carries social activity copy. Never clickable.
type EngagementPush struct {
	Title string
	Body  string
}

func (p EngagementPush) Content() Content { return Content{Title: p.Title, Body: p.Body} }

func (p EngagementPush) Payload() map[string]string {
	return map[string]string{"category": "engagement"}
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func pick(variants []string) string {
	rngMu.Lock()
	defer rngMu.Unlock()
	return variants[rng.Intn(len(variants))]
}

var featuredTitles = []string{
	"Featured workout 🔥",
	"Fresh on the library",
	"Coach's pick of the day",
}

var nudgeTitles = []string{
	"Time to move 💪",
	"Your workout is waiting",
	"Don't break the streak",
}

var nudgeBodies = []string{
	"A quick session today keeps the momentum going.",
	"Even 15 minutes counts. Get after it.",
	"Your future self will thank you.",
}

// NewFeaturedWorkout shapes a featured-workout push. If customBody is
// empty, a randomized default mentioning the workout name is used.
func NewFeaturedWorkout(workoutName, deepLink, customBody string) FeaturedWorkoutPush {
	body := strings.TrimSpace(customBody)
	if body == "" {
		body = fmt.Sprintf("Try %q today — it's trending with the community.", workoutName)
	}
	return FeaturedWorkoutPush{
		Title:    pick(featuredTitles),
		Body:     body,
		DeepLink: deepLink,
	}
}

// NewNudge shapes a workout-reminder push. If customBody is empty, a
// randomized default is used.
func NewNudge(customBody string) NudgePush {
	body := strings.TrimSpace(customBody)
	if body == "" {
		body = pick(nudgeBodies)
	}
	return NudgePush{Title: pick(nudgeTitles), Body: body}
}

// EngagementKind selects the IG-style phrase for an engagement push.
type EngagementKind string

const (
	KindLike    EngagementKind = "like"
	KindComment EngagementKind = "comment"
	KindFollow  EngagementKind = "follow"
	KindMessage EngagementKind = "message"
)

// NewEngagement shapes a social-activity push, e.g. "sam liked your workout."
func NewEngagement(kind EngagementKind, username string) EngagementPush {
	var body string
	switch kind {
	case KindLike:
		body = fmt.Sprintf("%s liked your workout.", username)
	case KindComment:
		body = fmt.Sprintf("%s commented on your post.", username)
	case KindFollow:
		body = fmt.Sprintf("%s started following you.", username)
	case KindMessage:
		body = fmt.Sprintf("%s sent you a message.", username)
	default:
		body = fmt.Sprintf("%s interacted with your profile.", username)
	}
	return EngagementPush{Title: "New activity", Body: body}
}

// NewDigest shapes a digest push. Digests are informational, never
// clickable, so they ride the engagement category.
func NewDigest(title, body string) EngagementPush {
	return EngagementPush{Title: title, Body: body}
}

var followingDigestTitles = []string{
	"Your people were busy 💪",
	"Activity from people you follow",
	"Catch up on your crew",
}

// FollowingDigestTitle returns a randomized title for the daily
// following-activity digest.
func FollowingDigestTitle() string { return pick(followingDigestTitles) }

// WhileAwayTitle returns the title for the while-you-were-away digest.
func WhileAwayTitle() string { return "While you were away" }
