package models

// TimeBucket is a coarse time-of-day classification for a workout
// completion timestamp.
type TimeBucket string

const (
	BucketMorning TimeBucket = "morning"
	BucketMidday  TimeBucket = "midday"
	BucketEvening TimeBucket = "evening"
	BucketUnknown TimeBucket = "unknown"
)

// BucketForHour maps an hour of day (0-23) to its time bucket.
// Morning is 4:00-11:59, midday 12:00-16:59, everything else evening.
func BucketForHour(hour int) TimeBucket {
	switch {
	case hour >= 4 && hour < 12:
		return BucketMorning
	case hour >= 12 && hour < 17:
		return BucketMidday
	default:
		return BucketEvening
	}
}

// ParseTimeBucket parses a persisted bucket string. Unknown or unparseable
// values report ok=false rather than being silently coerced.
func ParseTimeBucket(s string) (TimeBucket, bool) {
	switch TimeBucket(s) {
	case BucketMorning, BucketMidday, BucketEvening:
		return TimeBucket(s), true
	default:
		return BucketUnknown, false
	}
}

// UserTier is the locally cached subscription tier.
type UserTier string

const (
	TierFree    UserTier = "free"
	TierPremium UserTier = "premium"
	TierCoach   UserTier = "coach"
	TierUnknown UserTier = "unknown"
)

// ParseUserTier parses a persisted tier string, reporting ok=false for
// values this build does not know about.
func ParseUserTier(s string) (UserTier, bool) {
	switch UserTier(s) {
	case TierFree, TierPremium, TierCoach:
		return UserTier(s), true
	default:
		return TierUnknown, false
	}
}
