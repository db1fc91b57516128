package unit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stake-plus/catchfleet/src/store"
)

// Identities names the upstream bots the classifier trusts.
type Identities struct {
	GameID               string
	PredictorID          string
	SecondaryPredictorID string
	CooldownEmojis       []string
}

func DefaultIdentities() Identities {
	return Identities{
		GameID:               "716390085896962058",
		PredictorID:          "1254602968938844171",
		SecondaryPredictorID: "874910942490677270",
		CooldownEmojis:       []string{"⏳", "⌛", "🕐"},
	}
}

// Mention renders the game bot mention used as a command prefix.
func (ids Identities) Mention() string {
	return "<@" + ids.GameID + ">"
}

// MatchContext is what a rule may inspect besides the message.
type MatchContext struct {
	SelfID  string
	Account store.Account
	IDs     Identities
}

// Action is a side effect requested by a rule.
type Action interface {
	action()
}

type (
	EnterCaptcha struct{ URL string }
	RequestHint  struct{ ChannelID string }
	Catch        struct {
		ChannelID string
		Names     []string
	}
	RecordCatch struct {
		Name  string
		Level int
	}
	RecordShiny struct{}
	ClickButton struct{ Button Button }
	SetCoins    struct{ Amount int64 }
	AddCoins    struct{ Amount int64 }
	Say         struct {
		ChannelID string
		Text      string
	}
)

func (EnterCaptcha) action() {}
func (RequestHint) action()  {}
func (Catch) action()        {}
func (RecordCatch) action()  {}
func (RecordShiny) action()  {}
func (ClickButton) action()  {}
func (SetCoins) action()     {}
func (AddCoins) action()     {}
func (Say) action()          {}

// Rule inspects one message and returns the actions it triggers, if any.
type Rule struct {
	Name  string
	Match func(mc MatchContext, m Message) []Action
}

// Classify runs every rule in order. A captcha short-circuits everything else.
func Classify(rules []Rule, mc MatchContext, m Message) []Action {
	var out []Action
	for _, r := range rules {
		for _, a := range r.Match(mc, m) {
			if c, ok := a.(EnterCaptcha); ok {
				return []Action{c}
			}
			out = append(out, a)
		}
	}
	return out
}

// CaptchaPlaceholder is stored when a challenge carries no link.
const CaptchaPlaceholder = "Check Discord"

var (
	urlPattern        = regexp.MustCompile(`https?://[^\s<>]+`)
	predictionPattern = regexp.MustCompile(`Possible Pokémon:\s*(.+)`)
	caughtPattern     = regexp.MustCompile(`(?i)you caught a level (\d+) ([^!<(\n]+)`)
	receivedPattern   = regexp.MustCompile(`(?i)you received ([0-9][0-9,.]*) pok[eé]coins`)
	numberPattern     = regexp.MustCompile(`[0-9][0-9,.]*`)
)

// DefaultRules is the classifier for the Pokétwo game server and its helpers.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "captcha", Match: matchCaptcha},
		{Name: "wild", Match: matchWild},
		{Name: "wrong_guess", Match: matchWrongGuess},
		{Name: "prediction", Match: matchPrediction},
		{Name: "secondary_prediction", Match: matchSecondaryPrediction},
		{Name: "caught", Match: matchCaught},
		{Name: "shiny", Match: matchShiny},
		{Name: "confirm", Match: matchConfirm},
		{Name: "balance", Match: matchBalance},
		{Name: "coins_received", Match: matchCoinsReceived},
		{Name: "owner_say", Match: matchOwnerSay},
	}
}

func matchCaptcha(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID || mc.SelfID == "" {
		return nil
	}
	text := normalizeApostrophes(strings.ToLower(m.Content))
	if !strings.Contains(text, "please tell us you're human") || !strings.Contains(m.Content, mc.SelfID) {
		return nil
	}
	url := CaptchaPlaceholder
	if found := urlPattern.FindString(m.Content); found != "" {
		url = strings.TrimRight(found, ")>.,")
	}
	return []Action{EnterCaptcha{URL: url}}
}

func matchWild(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID {
		return nil
	}
	if !anyText(m, func(s string) bool {
		return strings.Contains(strings.ToLower(s), "wild pokémon has appeared")
	}) {
		return nil
	}
	return []Action{RequestHint{ChannelID: m.ChannelID}}
}

func matchWrongGuess(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID || !strings.Contains(strings.ToLower(m.Content), "that is the wrong pokémon") {
		return nil
	}
	return []Action{RequestHint{ChannelID: m.ChannelID}}
}

func matchPrediction(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.PredictorID {
		return nil
	}
	match := predictionPattern.FindStringSubmatch(m.Content)
	if match == nil {
		return nil
	}
	var names []string
	for _, n := range strings.Split(match[1], ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return []Action{Catch{ChannelID: m.ChannelID, Names: names}}
}

func matchSecondaryPrediction(mc MatchContext, m Message) []Action {
	if mc.IDs.SecondaryPredictorID == "" || m.AuthorID != mc.IDs.SecondaryPredictorID || len(m.Embeds) == 0 {
		return nil
	}
	e := m.Embeds[0]
	name := singleWord(e.Title)
	if name == "" {
		name = singleWord(e.Description)
	}
	if name == "" {
		return nil
	}
	return []Action{Catch{ChannelID: m.ChannelID, Names: []string{name}}}
}

func matchCaught(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID || mc.SelfID == "" || !strings.Contains(m.Content, mc.SelfID) {
		return nil
	}
	match := caughtPattern.FindStringSubmatch(m.Content)
	if match == nil {
		return nil
	}
	level, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	name := strings.TrimSpace(match[2])
	if name == "" {
		return nil
	}
	return []Action{RecordCatch{Name: name, Level: level}}
}

func matchShiny(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID || mc.SelfID == "" || !strings.Contains(m.Content, mc.SelfID) {
		return nil
	}
	if !strings.Contains(strings.ToLower(m.Content), "these colors seem unusual") {
		return nil
	}
	return []Action{RecordShiny{}}
}

func matchConfirm(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID {
		return nil
	}
	for _, b := range m.Buttons {
		if strings.EqualFold(strings.TrimSpace(b.Label), "confirm") {
			return []Action{ClickButton{Button: b}}
		}
	}
	return nil
}

func matchBalance(mc MatchContext, m Message) []Action {
	if m.AuthorID != mc.IDs.GameID {
		return nil
	}
	for _, e := range m.Embeds {
		if !strings.Contains(strings.ToLower(e.Title), "balance") {
			continue
		}
		for _, f := range e.Fields {
			if strings.Contains(strings.ToLower(f.Name), "coin") {
				if n, ok := parseCoins(numberPattern.FindString(f.Value)); ok {
					return []Action{SetCoins{Amount: n}}
				}
				return nil
			}
		}
		if n, ok := parseCoins(numberPattern.FindString(e.Description)); ok {
			return []Action{SetCoins{Amount: n}}
		}
		return nil
	}
	return nil
}

func matchCoinsReceived(mc MatchContext, m Message) []Action {
	match := receivedPattern.FindStringSubmatch(m.Content)
	if match == nil {
		return nil
	}
	n, ok := parseCoins(match[1])
	if !ok {
		return nil
	}
	return []Action{AddCoins{Amount: n}}
}

func matchOwnerSay(mc MatchContext, m Message) []Action {
	if mc.SelfID == "" || !mc.Account.IsOwner(m.AuthorID) {
		return nil
	}
	for _, prefix := range []string{"<@" + mc.SelfID + "> say ", "<@!" + mc.SelfID + "> say "} {
		if strings.HasPrefix(m.Content, prefix) {
			if text := strings.TrimSpace(strings.TrimPrefix(m.Content, prefix)); text != "" {
				return []Action{Say{ChannelID: m.ChannelID, Text: text}}
			}
		}
	}
	return nil
}

// parseCoins strips grouping separators; anything else unparsable is a miss.
func parseCoins(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	clean := strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(s)
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func anyText(m Message, pred func(string) bool) bool {
	if pred(m.Content) {
		return true
	}
	for _, e := range m.Embeds {
		if pred(e.Title) || pred(e.Description) {
			return true
		}
		for _, f := range e.Fields {
			if pred(f.Name) || pred(f.Value) {
				return true
			}
		}
	}
	return false
}

func singleWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) != 1 {
		return ""
	}
	return strings.Trim(fields[0], "*_`")
}

func normalizeApostrophes(s string) string {
	return strings.ReplaceAll(s, "’", "'")
}
