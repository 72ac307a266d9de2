package notification

import (
	"fmt"
	"strings"

	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/util"
)

// Render turns an event into the transport-neutral payload every target sends.
func Render(event *domain.ChangeEvent, lodestoneBaseURL string) *domain.Payload {
	payload := &domain.Payload{
		Kind:         event.Kind,
		ThumbnailURL: event.AvatarURL,
		Timestamp:    event.Timestamp,
	}

	var details []domain.PayloadField
	switch event.Kind {
	case domain.EventJoined:
		payload.Title = "Joined: " + event.DisplayName
		payload.Color = constants.EventColors.Joined
		details = []domain.PayloadField{{Name: "Rank", Value: event.DisplayRank, Inline: true}}
	case domain.EventLeft:
		payload.Title = "Dismissed/Left: " + event.DisplayName
		payload.Color = constants.EventColors.Left
		details = []domain.PayloadField{{Name: "Rank", Value: event.DisplayRank, Inline: true}}
	case domain.EventRenamed:
		payload.Title = "Name Change: " + event.Current
		payload.Color = constants.EventColors.Renamed
		details = []domain.PayloadField{
			{Name: "Previous Name", Value: event.Previous, Inline: true},
			{Name: "Current Name", Value: event.Current, Inline: true},
		}
	case domain.EventRankChanged:
		payload.Title = "Rank Change: " + event.DisplayName
		payload.Color = constants.EventColors.RankChanged
		details = []domain.PayloadField{
			{Name: "Previous Rank", Value: event.Previous, Inline: true},
			{Name: "Current Rank", Value: event.Current, Inline: true},
		}
	default:
		payload.Title = fmt.Sprintf("%s: %s", event.Kind, event.DisplayName)
	}

	fields := make([]domain.PayloadField, 0, len(details)+1)
	if link := lodestoneLink(event, lodestoneBaseURL); link != "" {
		fields = append(fields, domain.PayloadField{Name: "Lodestone", Value: link})
	}
	fields = append(fields, details...)

	payload.Title = util.TruncateString(payload.Title, constants.StringLimits.EmbedTitle)
	if len(fields) > constants.StringLimits.MaxEmbedFields {
		fields = fields[:constants.StringLimits.MaxEmbedFields]
	}
	for i := range fields {
		fields[i].Name = util.TruncateString(fields[i].Name, constants.StringLimits.EmbedFieldName)
		fields[i].Value = util.TruncateString(fields[i].Value, constants.StringLimits.EmbedFieldValue)
	}
	payload.Fields = fields

	return payload
}

// lodestoneLink is a markdown link to the character's Lodestone profile.
func lodestoneLink(event *domain.ChangeEvent, baseURL string) string {
	id := strings.TrimSpace(event.CharacterID.String())
	if id == "" {
		return ""
	}
	if baseURL == "" {
		baseURL = constants.APIConfig.LodestoneBaseURL
	}
	name := event.DisplayName
	if name == "" {
		name = id
	}
	return fmt.Sprintf("[%s](%s/lodestone/character/%s/)", name, strings.TrimRight(baseURL, "/"), id)
}
