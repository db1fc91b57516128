package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/catchfleet/src/unit"
)

func convertMessage(m *discordgo.Message) unit.Message {
	out := unit.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		emb := unit.Embed{Title: e.Title, Description: e.Description}
		for _, f := range e.Fields {
			if f != nil {
				emb.Fields = append(emb.Fields, unit.EmbedField{Name: f.Name, Value: f.Value})
			}
		}
		out.Embeds = append(out.Embeds, emb)
	}
	out.Buttons = collectButtons(m.Components, out.Buttons)
	return out
}

// collectButtons flattens action rows into the buttons they hold.
func collectButtons(components []discordgo.MessageComponent, into []unit.Button) []unit.Button {
	for _, c := range components {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			into = collectButtons(v.Components, into)
		case discordgo.ActionsRow:
			into = collectButtons(v.Components, into)
		case *discordgo.Button:
			into = append(into, unit.Button{Label: v.Label, CustomID: v.CustomID})
		case discordgo.Button:
			into = append(into, unit.Button{Label: v.Label, CustomID: v.CustomID})
		}
	}
	return into
}

func convertReaction(r *discordgo.MessageReaction) unit.Reaction {
	return unit.Reaction{
		MessageID: r.MessageID,
		ChannelID: r.ChannelID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
	}
}
