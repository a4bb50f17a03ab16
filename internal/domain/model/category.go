package model

import (
	"fmt"
	"strings"

	"autoshorts/internal/domain"
)

// Category is a content theme a job is generated for.
type Category string

const (
	CategorySchoolTips      Category = "SCHOOL_TIPS"
	CategoryGeneralCulture  Category = "GENERAL_CULTURE"
	CategoryBusinessSuccess Category = "BUSINESS_SUCCESS"
	CategoryMotivation      Category = "MOTIVATION"
	CategoryScaryStory      Category = "SCARY_STORY"
	CategoryWouldYouRather  Category = "WOULD_YOU_RATHER"
	CategoryShowerThoughts  Category = "SHOWER_THOUGHTS"
)

var categoryNames = map[Category]string{
	CategorySchoolTips:      "Conseils Scolaires (Étudiants)",
	CategoryGeneralCulture:  "Culture Générale Éducative",
	CategoryBusinessSuccess: "Histoire de Marque/Succès Business",
	CategoryMotivation:      "Motivation Travail",
	CategoryScaryStory:      "Horreur & Creepypasta",
	CategoryWouldYouRather:  "Tu préfères ? (Dilemme)",
	CategoryShowerThoughts:  "Pensées de Douche",
}

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{
		CategorySchoolTips,
		CategoryBusinessSuccess,
		CategoryGeneralCulture,
		CategoryMotivation,
		CategoryScaryStory,
		CategoryWouldYouRather,
		CategoryShowerThoughts,
	}
}

// DisplayName is the human label used in prompts.
func (c Category) DisplayName() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return string(c)
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory accepts the enum value in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", domain.ErrInvalidArgument, s)
	}
	return c, nil
}

// Platform is a publishing destination recorded on a job.
type Platform string

const (
	PlatformTikTok   Platform = "TikTok"
	PlatformYouTube  Platform = "YouTube Shorts"
	PlatformFacebook Platform = "Facebook Reels"
)

func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tiktok":
		return PlatformTikTok, nil
	case "youtube", "youtube shorts":
		return PlatformYouTube, nil
	case "facebook", "facebook reels":
		return PlatformFacebook, nil
	}
	return "", fmt.Errorf("%w: unknown platform %q", domain.ErrInvalidArgument, s)
}
