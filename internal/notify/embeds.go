package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grudge-angeler/backend/internal/scores"
)

const (
	footerText    = "Grudge Angeler"
	logoPath      = "/assets/grudge_logo.png"
	anonymousName = "Anonymous"
	starGlyph     = "⭐"

	colorDefault     = 0x607d8b
	colorTournament  = 0x2196f3
	colorReminder    = 0xff9800
	colorResults     = 0xffd700
	maxResultsFields = 25
)

var rarityColors = map[string]int{
	string(scores.RarityCommon):    0xa0a0a0,
	string(scores.RarityUncommon):  0x4caf50,
	string(scores.RarityRare):      0x2196f3,
	string(scores.RarityLegendary): 0xff9800,
	string(scores.RarityUltraRare): 0xe040fb,
}

var podium = []string{"\U0001F947", "\U0001F948", "\U0001F949"}

// Embed mirrors the subset of the Discord embed object the service posts.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type webhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// CatchEvent describes a notable catch reported by a client.
type CatchEvent struct {
	FishName string
	Weight   float64
	Length   float64
	Rarity   string
	Username string
	Earnings float64
	Icon     string
}

// RarityColor returns the embed color for a rarity, falling back to slate grey.
func RarityColor(rarity string) int {
	if color, ok := rarityColors[rarity]; ok {
		return color
	}
	return colorDefault
}

// RarityStars returns one to five stars by rarity.
func RarityStars(rarity string) string {
	count := 1
	switch scores.Rarity(rarity) {
	case scores.RarityUltraRare:
		count = 5
	case scores.RarityLegendary:
		count = 4
	case scores.RarityRare:
		count = 3
	case scores.RarityUncommon:
		count = 2
	}
	return strings.Repeat(starGlyph, count)
}

func catchEmbed(event CatchEvent, baseURL string, now time.Time) Embed {
	username := strings.TrimSpace(event.Username)
	if username == "" {
		username = anonymousName
	}
	rarityLabel := strings.ToUpper(strings.Replace(event.Rarity, "_", " ", 1))
	return Embed{
		Title:     event.FishName + " Caught!",
		Color:     RarityColor(event.Rarity),
		Thumbnail: &EmbedImage{URL: baseURL + event.Icon},
		Fields: []EmbedField{
			{Name: "Angler", Value: username, Inline: true},
			{Name: "Rarity", Value: rarityLabel + " " + RarityStars(event.Rarity), Inline: true},
			{Name: "Weight", Value: formatNumber(event.Weight) + " lbs", Inline: true},
			{Name: "Length", Value: formatNumber(event.Length) + `"`, Inline: true},
			{Name: "Earnings", Value: formatNumber(event.Earnings) + " gbux", Inline: true},
		},
		Footer:    footer(baseURL),
		Timestamp: formatTimestamp(now),
	}
}

func tournamentStartEmbed(date string, endsIn time.Duration, baseURL string, now time.Time) Embed {
	return Embed{
		Title:       "\U0001F3A3 Daily Tournament Is Live!",
		Description: fmt.Sprintf("The tournament for %s has started. Cast your lines, you have %s to post your best haul.", date, formatRemaining(endsIn)),
		Color:       colorTournament,
		Footer:      footer(baseURL),
		Timestamp:   formatTimestamp(now),
	}
}

func tournamentReminderEmbed(date string, endsIn time.Duration, baseURL string, now time.Time) Embed {
	return Embed{
		Title:       "⏰ Tournament Reminder",
		Description: fmt.Sprintf("Only %s left in the %s tournament. Get your submissions in!", formatRemaining(endsIn), date),
		Color:       colorReminder,
		Footer:      footer(baseURL),
		Timestamp:   formatTimestamp(now),
	}
}

func tournamentResultsEmbed(date string, results []scores.TournamentEntry, baseURL string, now time.Time) Embed {
	fields := make([]EmbedField, 0, len(results))
	for index, entry := range results {
		if index == maxResultsFields {
			break
		}
		rank := "#" + strconv.Itoa(index+1)
		if index < len(podium) {
			rank = podium[index]
		}
		value := fmt.Sprintf("%s pts | %d fish | %s lbs", formatNumber(entry.CompositeScore), entry.TotalCaught, formatNumber(entry.TotalWeight))
		if entry.Reward > 0 {
			value += fmt.Sprintf(" | +%d gbux", entry.Reward)
		}
		fields = append(fields, EmbedField{Name: rank + " " + entry.PlayerName, Value: value})
	}
	return Embed{
		Title:       "\U0001F3C6 Tournament Results: " + date,
		Description: fmt.Sprintf("The tournament has ended. Congratulations to the top %d anglers!", len(fields)),
		Color:       colorResults,
		Fields:      fields,
		Footer:      footer(baseURL),
		Timestamp:   formatTimestamp(now),
	}
}

func footer(baseURL string) *EmbedFooter {
	return &EmbedFooter{Text: footerText, IconURL: baseURL + logoPath}
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatTimestamp(now time.Time) string {
	return now.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatRemaining(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	remaining = remaining.Round(time.Minute)
	hours := int(remaining / time.Hour)
	minutes := int((remaining % time.Hour) / time.Minute)
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
