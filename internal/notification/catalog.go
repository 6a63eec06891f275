package notification

import (
	"golang.org/x/text/language"
)

type messageTable struct {
	emergencyMarker string
	requestMarker   string
	labels          map[SubType]string
}

var (
	supportedLanguages = []language.Tag{language.Vietnamese, language.English}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	messageTables = []messageTable{
		{
			emergencyMarker: "🚨 KHẨN CẤP",
			requestMarker:   "🚛 YÊU CẦU",
			labels: map[SubType]string{
				SubTypeLandingGear:     "Gãy càng đáp",
				SubTypeEngineExplosion: "Nổ động cơ",
				SubTypeWingControl:     "Hỏng điều khiển cánh",
				SubTypeFollowMe:        "Xe Follow Me",
				SubTypePushback:        "Pushback",
				SubTypeFireTruck:       "Xe cứu hỏa",
			},
		},
		{
			emergencyMarker: "🚨 EMERGENCY",
			requestMarker:   "🚛 REQUEST",
			labels: map[SubType]string{
				SubTypeLandingGear:     "Landing gear failure",
				SubTypeEngineExplosion: "Engine explosion",
				SubTypeWingControl:     "Wing control failure",
				SubTypeFollowMe:        "Follow-me car",
				SubTypePushback:        "Pushback",
				SubTypeFireTruck:       "Fire truck",
			},
		},
	}
)

// Catalog renders notification messages in one language.
type Catalog struct {
	tag   language.Tag
	table messageTable
}

// NewCatalog picks the closest supported language for a BCP 47 tag such as
// "vi", "en-GB" or "vi-VN". Unknown or empty tags fall back to Vietnamese.
func NewCatalog(lang string) *Catalog {
	idx := 0
	if tag, err := language.Parse(lang); err == nil {
		_, idx, _ = languageMatcher.Match(tag)
	}
	return &Catalog{tag: supportedLanguages[idx], table: messageTables[idx]}
}

// Language returns the language the catalog renders.
func (c *Catalog) Language() language.Tag {
	return c.tag
}

// Label returns the localized label of a subtype, or the raw value when unknown.
func (c *Catalog) Label(st SubType) string {
	if label, ok := c.table.labels[st]; ok {
		return label
	}
	return string(st)
}

// Message formats the fixed "<marker>: <label>" text stored on a notification.
func (c *Catalog) Message(t Type, st SubType) string {
	marker := c.table.requestMarker
	if t == TypeEmergency {
		marker = c.table.emergencyMarker
	}
	return marker + ": " + c.Label(st)
}
