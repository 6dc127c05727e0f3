package renderer

import "strings"

// voiceEntry is one built-in catalog entry, keyed by (gender, age category).
type voiceEntry struct {
	voiceType string
	gender    string
	ageStage  string
}

// BuiltinVoiceCatalog is the fixed set of voices the TTS backend accepts,
// tagged by {male,female} x {child,young,adult,elder}; every combination
// has an entry except male elder, which has none. Grounded on the
// original renderer's VOICE_TYPES table, with its vendor-specific voice
// IDs replaced by generic identifiers decoupled from any one provider.
var BuiltinVoiceCatalog = []voiceEntry{
	{voiceType: "voice-01", gender: "female", ageStage: "young"},
	{voiceType: "voice-02", gender: "female", ageStage: "young"},
	{voiceType: "voice-03", gender: "male", ageStage: "young"},
	{voiceType: "voice-04", gender: "female", ageStage: "young"},
	{voiceType: "voice-05", gender: "female", ageStage: "adult"},
	{voiceType: "voice-06", gender: "male", ageStage: "young"},
	{voiceType: "voice-07", gender: "female", ageStage: "adult"},
	{voiceType: "voice-08", gender: "male", ageStage: "young"},
	{voiceType: "voice-09", gender: "male", ageStage: "young"},
	{voiceType: "voice-10", gender: "female", ageStage: "adult"},
	{voiceType: "voice-11", gender: "male", ageStage: "adult"},
	{voiceType: "voice-12", gender: "male", ageStage: "child"},
	{voiceType: "voice-13", gender: "male", ageStage: "adult"},
	{voiceType: "voice-14", gender: "female", ageStage: "adult"},
	{voiceType: "voice-15", gender: "female", ageStage: "elder"},
	{voiceType: "voice-16", gender: "female", ageStage: "elder"},
	{voiceType: "voice-17", gender: "female", ageStage: "child"},
	{voiceType: "voice-18", gender: "female", ageStage: "child"},
	{voiceType: "voice-19", gender: "male", ageStage: "child"},
	{voiceType: "voice-20", gender: "male", ageStage: "child"},
	{voiceType: "voice-21", gender: "female", ageStage: "adult"},
	{voiceType: "voice-22", gender: "male", ageStage: "child"},
	{voiceType: "voice-23", gender: "male", ageStage: "adult"},
	{voiceType: "voice-24", gender: "male", ageStage: "adult"},
	{voiceType: "voice-25", gender: "female", ageStage: "adult"},
	{voiceType: "voice-26", gender: "male", ageStage: "adult"},
	{voiceType: "voice-27", gender: "female", ageStage: "child"},
	{voiceType: "voice-28", gender: "male", ageStage: "child"},
}

// ageCategory buckets an appearance's age/age_stage into one of the four
// catalog buckets: numeric age takes priority over the free-form stage
// string.
func ageCategory(age int, ageStage string) string {
	if age > 0 {
		switch {
		case age < 12:
			return "child"
		case age < 25:
			return "young"
		case age >= 60:
			return "elder"
		default:
			return "adult"
		}
	}
	return ageStageCategory(ageStage)
}

func ageStageCategory(ageStage string) string {
	switch {
	case containsAny(ageStage, "child", "儿童", "少儿"):
		return "child"
	case containsAny(ageStage, "young", "青年", "学生"):
		return "young"
	case containsAny(ageStage, "elder", "老年"):
		return "elder"
	default:
		return "adult"
	}
}

func containsAny(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if len(n) > 0 && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// selectVoiceType resolves a voice for (gender, category): exact
// gender+category match first, then gender-only, then the configured
// default.
func selectVoiceType(gender, category string, fallback string) string {
	gender = strings.ToLower(gender)

	for _, v := range BuiltinVoiceCatalog {
		if v.gender == gender && v.ageStage == category {
			return v.voiceType
		}
	}
	for _, v := range BuiltinVoiceCatalog {
		if v.gender == gender {
			return v.voiceType
		}
	}
	return fallback
}
