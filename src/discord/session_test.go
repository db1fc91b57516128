package discord

import (
	"encoding/json"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/catchfleet/src/store"
	"github.com/stake-plus/catchfleet/src/unit"
)

func TestConvertMessage(t *testing.T) {
	m := &discordgo.Message{
		ID:        "10",
		ChannelID: "20",
		GuildID:   "30",
		Content:   "hello",
		Author:    &discordgo.User{ID: "40"},
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Balance",
			Description: "desc",
			Fields:      []*discordgo.MessageEmbedField{{Name: "Pokécoins", Value: "12"}},
		}},
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.Button{Label: "Confirm", CustomID: "ok"},
				discordgo.Button{Label: "Cancel", CustomID: "no"},
			}},
		},
	}

	got := convertMessage(m)

	assert.Equal(t, unit.Message{
		ID:        "10",
		ChannelID: "20",
		GuildID:   "30",
		AuthorID:  "40",
		Content:   "hello",
		Embeds: []unit.Embed{{
			Title:       "Balance",
			Description: "desc",
			Fields:      []unit.EmbedField{{Name: "Pokécoins", Value: "12"}},
		}},
		Buttons: []unit.Button{{Label: "Confirm", CustomID: "ok"}, {Label: "Cancel", CustomID: "no"}},
	}, got)
}

func TestConvertReaction(t *testing.T) {
	r := &discordgo.MessageReaction{UserID: "1", MessageID: "2", ChannelID: "3", Emoji: discordgo.Emoji{Name: "⏳"}}
	assert.Equal(t, unit.Reaction{MessageID: "2", ChannelID: "3", UserID: "1", Emoji: "⏳"}, convertReaction(r))
}

func TestInteractionPayload(t *testing.T) {
	m := unit.Message{ID: "m", ChannelID: "c", GuildID: "g", AuthorID: "app"}
	body, err := json.Marshal(interactionPayload(m, unit.Button{Label: "Confirm", CustomID: "ok"}, "sess", "123"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.EqualValues(t, 3, decoded["type"])
	assert.Equal(t, "app", decoded["application_id"])
	assert.Equal(t, "sess", decoded["session_id"])
	assert.Equal(t, "g", decoded["guild_id"])
	data := decoded["data"].(map[string]interface{})
	assert.EqualValues(t, 2, data["component_type"])
	assert.Equal(t, "ok", data["custom_id"])
}

func TestNewSessionRequiresToken(t *testing.T) {
	_, err := NewSession(store.Account{ID: 1}, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoToken)

	s, err := NewFactory(Config{})(store.Account{ID: 1, Token: "abc"})
	require.NoError(t, err)
	assert.False(t, s.Ready())
}

func TestUserTag(t *testing.T) {
	assert.Equal(t, "ash", userTag(&discordgo.User{Username: "ash", Discriminator: "0"}))
	assert.Equal(t, "ash#0420", userTag(&discordgo.User{Username: "ash", Discriminator: "0420"}))
}
