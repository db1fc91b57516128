package unit_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/catchfleet/src/clock"
	"github.com/stake-plus/catchfleet/src/data"
	"github.com/stake-plus/catchfleet/src/rarity"
	"github.com/stake-plus/catchfleet/src/store"
	"github.com/stake-plus/catchfleet/src/unit"
)

type sentMessage struct {
	ChannelID string
	Content   string
	At        time.Time
}

type fakeTransport struct {
	clk       clock.Clock
	openErr   error
	noReady   bool
	noChannel bool

	mu        sync.Mutex
	failHints int
	sends  []sentMessage
	clicks []unit.Button
	closed int
}

func (f *fakeTransport) Open(_ context.Context, sink unit.EventSink) error {
	if f.openErr != nil {
		return f.openErr
	}
	if !f.noReady {
		sink.HandleReady(selfID, "Unit#0001")
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) Ready() bool { return true }

func (f *fakeTransport) HasChannel(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.noChannel
}

func (f *fakeTransport) Send(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHints > 0 && strings.HasSuffix(content, " h") {
		f.failHints--
		return "", errors.New("gateway unavailable")
	}
	f.sends = append(f.sends, sentMessage{ChannelID: channelID, Content: content, At: f.clk.Now()})
	return fmt.Sprintf("msg-%d", len(f.sends)), nil
}

func (f *fakeTransport) Click(_ context.Context, _ unit.Message, b unit.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, b)
	return nil
}

func (f *fakeTransport) sent(channelID, contains string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, s := range f.sends {
		if s.ChannelID == channelID && strings.Contains(s.Content, contains) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// countingStore counts every write the unit performs.
type countingStore struct {
	*store.Store
	mu     sync.Mutex
	writes int
}

func (c *countingStore) UpdateAccount(ctx context.Context, id uint, changes store.Changes) (*store.Account, error) {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Store.UpdateAccount(ctx, id, changes)
}

func (c *countingStore) AppendLog(ctx context.Context, accountID *uint, level store.Level, content string) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Store.AppendLog(ctx, accountID, level, content)
}

func (c *countingStore) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type harness struct {
	t     *testing.T
	clk   *clock.ManualClock
	store *countingStore
	tr    *fakeTransport
	acct  store.Account
	unit  *unit.Unit
	ids   unit.Identities
}

func testTiming() unit.Timing {
	return unit.Timing{
		WorkDuration:   30 * time.Second,
		RestDuration:   10 * time.Second,
		BalanceInitial: 5 * time.Second,
		BalanceEvery:   10 * time.Minute,
		HintRetryMin:   5 * time.Second,
		HintRetryMax:   8 * time.Second,
		ReadyTimeout:   5 * time.Second,
	}
}

func newHarness(t *testing.T, configure func(*store.Account, *fakeTransport, *unit.Options)) *harness {
	t.Helper()
	clk := clock.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	db, err := data.ConnectSQLite("")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	st := &countingStore{Store: store.New(db, store.WithClock(clk))}

	market := "12345"
	acct := store.Account{
		Name:           "Unit-01",
		Token:          "token",
		CatchChannelID: catchChan,
		SpamChannelID:  spamChan,
		SpamSpeed:      3000,
		CatchSpeed:     5000,
		OwnerIDs:       []string{ownerID},
		MarketID:       &market,
	}
	tr := &fakeTransport{clk: clk}
	opts := unit.Options{
		Clock:  clk,
		Timing: testTiming(),
		Rarity: rarity.NewTable([]string{"Mewtwo"}, []string{"Mew"}),
		Jitter: func(min, _ time.Duration) time.Duration { return min },
		Token:  func() string { return "tok" },
	}
	if configure != nil {
		configure(&acct, tr, &opts)
	}
	require.NoError(t, st.CreateAccount(context.Background(), &acct))

	h := &harness{t: t, clk: clk, store: st, tr: tr, acct: acct, ids: unit.DefaultIdentities()}
	h.unit = unit.New(acct, st, tr, opts)
	t.Cleanup(func() { h.unit.Stop(context.Background()) })
	return h
}

func startedHarness(t *testing.T) *harness {
	h := newHarness(t, nil)
	require.NoError(t, h.unit.Start(context.Background()))
	return h
}

// settle waits until the actor has drained everything posted so far.
func (h *harness) settle() { h.unit.Phase() }

// advance moves virtual time one second at a time so every timer fire is
// handled before the next one is due.
func (h *harness) advance(d time.Duration) {
	for step := time.Duration(0); step < d; step += time.Second {
		h.clk.Advance(time.Second)
		h.settle()
	}
}

func (h *harness) deliver(m unit.Message) {
	h.unit.HandleMessage(m)
	h.settle()
}

func (h *harness) react(r unit.Reaction) {
	h.unit.HandleReaction(r)
	h.settle()
}

func (h *harness) game(channelID, content string) unit.Message {
	return unit.Message{ID: "g1", ChannelID: channelID, AuthorID: h.ids.GameID, Content: content}
}

func (h *harness) account() *store.Account {
	h.t.Helper()
	a, err := h.store.GetAccount(context.Background(), h.acct.ID)
	require.NoError(h.t, err)
	return a
}

func (h *harness) assertCaptchaInvariant() {
	h.t.Helper()
	a := h.account()
	if a.Status == store.StatusCaptcha {
		assert.NotNil(h.t, a.CaptchaURL)
	} else {
		assert.Nil(h.t, a.CaptchaURL)
	}
}

func (h *harness) logContents() []string {
	h.t.Helper()
	entries, err := h.store.ListLogs(context.Background(), &h.acct.ID, store.MaxLogLimit)
	require.NoError(h.t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}

func TestUnit_StartGoesRunning(t *testing.T) {
	h := startedHarness(t)
	h.settle()

	assert.Equal(t, store.StatusRunning, h.unit.Phase())
	a := h.account()
	assert.Equal(t, store.StatusRunning, a.Status)
	assert.Nil(t, a.CaptchaURL)
	assert.Contains(t, h.logContents(), "Logged in as Unit#0001")
	assert.NotEmpty(t, h.unit.RunID())
}

func TestUnit_LoginFailure(t *testing.T) {
	h := newHarness(t, func(_ *store.Account, tr *fakeTransport, _ *unit.Options) {
		tr.openErr = errors.New("invalid token")
	})

	err := h.unit.Start(context.Background())

	var loginErr *unit.LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, store.StatusStopped, h.account().Status)
	assert.Equal(t, store.StatusStopped, h.unit.Phase())
	logs := h.logContents()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0], "Login failed")
	assert.Equal(t, 1, h.tr.closed)
}

func TestUnit_ReadyTimeout(t *testing.T) {
	h := newHarness(t, func(_ *store.Account, tr *fakeTransport, opts *unit.Options) {
		tr.noReady = true
		opts.Timing.ReadyTimeout = 20 * time.Millisecond
	})

	err := h.unit.Start(context.Background())

	var loginErr *unit.LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, store.StatusStopped, h.account().Status)
}

func TestUnit_WildEncounterSendsHintOnce(t *testing.T) {
	h := startedHarness(t)

	h.deliver(h.game(catchChan, "A new wild pokémon has appeared!"))

	hints := h.tr.sent(catchChan, h.ids.Mention()+" h")
	require.Len(t, hints, 1)
	assert.Equal(t, h.ids.Mention()+" h", hints[0].Content)
	assert.Equal(t, 1, h.tr.total())
}

func TestUnit_IgnoresOtherChannelsAndSelf(t *testing.T) {
	h := startedHarness(t)

	h.deliver(h.game("999", "A new wild pokémon has appeared!"))
	own := h.game(catchChan, "A new wild pokémon has appeared!")
	own.AuthorID = selfID
	h.deliver(own)

	assert.Zero(t, h.tr.total())
}

func TestUnit_PredictionStaggersCatches(t *testing.T) {
	h := startedHarness(t)

	h.deliver(unit.Message{ChannelID: catchChan, AuthorID: h.ids.PredictorID, Content: "Possible Pokémon: Pikachu, Raichu"})
	require.Len(t, h.tr.sent(catchChan, " c "), 1)

	h.advance(5 * time.Second)

	catches := h.tr.sent(catchChan, " c ")
	require.Len(t, catches, 2)
	assert.Equal(t, h.ids.Mention()+" c Pikachu", catches[0].Content)
	assert.Equal(t, h.ids.Mention()+" c Raichu", catches[1].Content)
	assert.Equal(t, 5*time.Second, catches[1].At.Sub(catches[0].At))
}

func TestUnit_StaggeredCatchDroppedAfterCaptcha(t *testing.T) {
	h := startedHarness(t)

	h.deliver(unit.Message{ChannelID: catchChan, AuthorID: h.ids.PredictorID, Content: "Possible Pokémon: Pikachu, Raichu"})
	h.deliver(h.game(catchChan, "<@"+selfID+"> Please tell us you're human! https://verify.example/c"))
	h.advance(10 * time.Second)

	assert.Len(t, h.tr.sent(catchChan, " c "), 1)
}

func TestUnit_CatchUpdatesRarityCounters(t *testing.T) {
	h := startedHarness(t)

	h.deliver(h.game(catchChan, "Congratulations <@"+selfID+">! You caught a level 12 Mewtwo!"))

	a := h.account()
	assert.Equal(t, int64(1), a.TotalCaught)
	assert.Equal(t, int64(1), a.TotalLegendary)
	assert.Zero(t, a.TotalNormal)
	assert.Zero(t, a.TotalMythical)
	require.NotNil(t, a.LastActive)

	h.deliver(h.game(catchChan, "Congratulations <@"+selfID+">! You caught a level 3 Mew!"))
	h.deliver(h.game(catchChan, "Congratulations <@"+selfID+">! You caught a level 7 Pidgey!"))

	a = h.account()
	assert.Equal(t, int64(3), a.TotalCaught)
	assert.Equal(t, int64(1), a.TotalLegendary)
	assert.Equal(t, int64(1), a.TotalMythical)
	assert.Equal(t, int64(1), a.TotalNormal)
}

func TestUnit_CaptchaStopsSpam(t *testing.T) {
	h := startedHarness(t)
	h.advance(3 * time.Second)
	require.Len(t, h.tr.sent(spamChan, "tok"), 1)

	h.deliver(h.game(spamChan, "Whoa <@"+selfID+">! Please tell us you're human: https://verify.example/abc"))

	assert.Equal(t, store.StatusCaptcha, h.unit.Phase())
	a := h.account()
	assert.Equal(t, store.StatusCaptcha, a.Status)
	require.NotNil(t, a.CaptchaURL)
	assert.Equal(t, "https://verify.example/abc", *a.CaptchaURL)

	h.advance(time.Minute)

	assert.Len(t, h.tr.sent(spamChan, "tok"), 1)
	assert.Empty(t, h.tr.sent(spamChan, " bal"))
	h.assertCaptchaInvariant()
}

func TestUnit_CaptchaGatesClassification(t *testing.T) {
	h := startedHarness(t)
	h.deliver(h.game(catchChan, "<@"+selfID+"> Please tell us you're human!"))
	before := h.tr.total()

	h.deliver(h.game(catchChan, "A new wild pokémon has appeared!"))

	assert.Equal(t, before, h.tr.total())
	require.NotNil(t, h.account().CaptchaURL)
	assert.Equal(t, unit.CaptchaPlaceholder, *h.account().CaptchaURL)
}

func TestUnit_ResumeAfterCaptcha(t *testing.T) {
	h := startedHarness(t)
	h.deliver(h.game(spamChan, "<@"+selfID+"> Please tell us you're human! https://verify.example/x"))
	h.advance(10 * time.Second)
	spamBefore := len(h.tr.sent(spamChan, "tok"))

	require.NoError(t, h.unit.Resume(context.Background()))

	assert.Equal(t, store.StatusRunning, h.unit.Phase())
	a := h.account()
	assert.Equal(t, store.StatusRunning, a.Status)
	assert.Nil(t, a.CaptchaURL)

	h.advance(3 * time.Second)
	assert.Len(t, h.tr.sent(spamChan, "tok"), spamBefore+1)
	assert.Contains(t, h.logContents(), "Resumed manually.")
}

func TestUnit_ResumeWhenNotBlockedIsNoop(t *testing.T) {
	h := startedHarness(t)
	writes := h.store.writeCount()

	require.NoError(t, h.unit.Resume(context.Background()))

	assert.Equal(t, writes, h.store.writeCount())
	assert.Equal(t, store.StatusRunning, h.unit.Phase())
}

func TestUnit_RestCycle(t *testing.T) {
	h := startedHarness(t)

	h.advance(30 * time.Second)
	assert.Equal(t, store.StatusResting, h.unit.Phase())
	assert.Equal(t, store.StatusResting, h.account().Status)
	spam := len(h.tr.sent(spamChan, "tok"))

	// catches are still handled while resting
	h.deliver(h.game(catchChan, "A new wild pokémon has appeared!"))
	assert.Len(t, h.tr.sent(catchChan, " h"), 1)

	h.advance(9 * time.Second)
	assert.Len(t, h.tr.sent(spamChan, "tok"), spam)

	h.advance(time.Second)
	assert.Equal(t, store.StatusRunning, h.unit.Phase())
	assert.Equal(t, store.StatusRunning, h.account().Status)

	h.advance(3 * time.Second)
	assert.Len(t, h.tr.sent(spamChan, "tok"), spam+1)

	// next work period ends again
	h.advance(27 * time.Second)
	assert.Equal(t, store.StatusResting, h.unit.Phase())
	h.assertCaptchaInvariant()
}

func TestUnit_BalancePoll(t *testing.T) {
	h := startedHarness(t)

	h.advance(5 * time.Second)

	polls := h.tr.sent(spamChan, " bal")
	require.Len(t, polls, 1)
	assert.Equal(t, h.ids.Mention()+" bal", polls[0].Content)
}

func TestUnit_StopLeavesNoPendingWork(t *testing.T) {
	h := startedHarness(t)
	h.deliver(unit.Message{ChannelID: catchChan, AuthorID: h.ids.PredictorID, Content: "Possible Pokémon: A, B, C"})
	h.advance(2 * time.Second)

	h.unit.Stop(context.Background())
	h.unit.Stop(context.Background())

	writes := h.store.writeCount()
	sends := h.tr.total()
	assert.Zero(t, h.clk.Pending())

	for i := 0; i < 120; i++ {
		h.clk.Advance(time.Minute)
	}
	h.unit.HandleMessage(h.game(catchChan, "A new wild pokémon has appeared!"))

	assert.Equal(t, writes, h.store.writeCount())
	assert.Equal(t, sends, h.tr.total())
	assert.Equal(t, store.StatusStopped, h.unit.Phase())
	assert.Equal(t, 1, h.tr.closed)

	stopped := 0
	for _, c := range h.logContents() {
		if c == "Bot stopped." {
			stopped++
		}
	}
	assert.Equal(t, 1, stopped)
}

func TestUnit_CountersNeverDecrease(t *testing.T) {
	h := startedHarness(t)
	balance := func(amount string) unit.Message {
		m := h.game(spamChan, "")
		m.Embeds = []unit.Embed{{Title: "Balance", Fields: []unit.EmbedField{{Name: "Pokécoins", Value: amount}}}}
		return m
	}
	events := []unit.Message{
		h.game(catchChan, "Congratulations <@"+selfID+">! You caught a level 5 Pidgey!"),
		balance("2,000"),
		{ChannelID: spamChan, AuthorID: "42", Content: "You received 150 Pokécoins!"},
		balance("10"),
		balance("garbage"),
		h.game(catchChan, "Congratulations <@"+selfID+">! You caught a level 9 Mew! These colors seem unusual..."),
		balance("1,999"),
	}

	prev := h.account()
	for _, ev := range events {
		h.deliver(ev)
		cur := h.account()
		assert.GreaterOrEqual(t, cur.TotalCaught, prev.TotalCaught)
		assert.GreaterOrEqual(t, cur.TotalCoins, prev.TotalCoins)
		assert.GreaterOrEqual(t, cur.TotalShiny, prev.TotalShiny)
		assert.GreaterOrEqual(t, cur.TotalLegendary, prev.TotalLegendary)
		assert.GreaterOrEqual(t, cur.TotalMythical, prev.TotalMythical)
		assert.GreaterOrEqual(t, cur.TotalNormal, prev.TotalNormal)
		h.assertCaptchaInvariant()
		prev = cur
	}

	assert.Equal(t, int64(2150), prev.TotalCoins)
	assert.Equal(t, int64(2), prev.TotalCaught)
	assert.Equal(t, int64(1), prev.TotalShiny)
}

func TestUnit_HintCooldownRetry(t *testing.T) {
	h := startedHarness(t)
	h.deliver(h.game(catchChan, "A new wild pokémon has appeared!"))
	require.Len(t, h.tr.sent(catchChan, " h"), 1)

	// wrong message, wrong author, wrong emoji
	h.react(unit.Reaction{MessageID: "msg-99", ChannelID: catchChan, UserID: h.ids.GameID, Emoji: "⏳"})
	h.react(unit.Reaction{MessageID: "msg-1", ChannelID: catchChan, UserID: "42", Emoji: "⏳"})
	h.react(unit.Reaction{MessageID: "msg-1", ChannelID: catchChan, UserID: h.ids.GameID, Emoji: "👍"})
	h.advance(8 * time.Second)
	require.Len(t, h.tr.sent(catchChan, " h"), 1)

	h.react(unit.Reaction{MessageID: "msg-1", ChannelID: catchChan, UserID: h.ids.GameID, Emoji: "⏳"})
	h.advance(4 * time.Second)
	assert.Len(t, h.tr.sent(catchChan, " h"), 1)
	h.advance(time.Second)
	assert.Len(t, h.tr.sent(catchChan, " h"), 2)
}

func TestUnit_HintRetryDroppedByRestCanBeRequestedAgain(t *testing.T) {
	h := startedHarness(t)
	h.advance(26 * time.Second)
	h.deliver(h.game(catchChan, "A new wild pokémon has appeared!"))
	hintID := fmt.Sprintf("msg-%d", h.tr.total())
	reaction := unit.Reaction{MessageID: hintID, ChannelID: catchChan, UserID: h.ids.GameID, Emoji: "⏳"}
	h.react(reaction)

	// work ends at 30s, before the retry is due at 31s
	h.advance(4 * time.Second)
	require.Equal(t, store.StatusResting, h.unit.Phase())
	h.advance(3 * time.Second)
	require.Len(t, h.tr.sent(catchChan, " h"), 1)

	h.react(reaction)
	h.advance(5 * time.Second)
	assert.Len(t, h.tr.sent(catchChan, " h"), 2)
}

func TestUnit_FailedHintRetryCanBeRequestedAgain(t *testing.T) {
	h := startedHarness(t)
	h.deliver(h.game(catchChan, "A new wild pokémon has appeared!"))
	require.Len(t, h.tr.sent(catchChan, " h"), 1)
	reaction := unit.Reaction{MessageID: "msg-1", ChannelID: catchChan, UserID: h.ids.GameID, Emoji: "⏳"}

	h.tr.mu.Lock()
	h.tr.failHints = 1
	h.tr.mu.Unlock()
	h.react(reaction)
	h.advance(5 * time.Second)
	require.Len(t, h.tr.sent(catchChan, " h"), 1)

	h.react(reaction)
	h.advance(5 * time.Second)
	assert.Len(t, h.tr.sent(catchChan, " h"), 2)
}

func TestUnit_LowerBalanceReadingIsIgnored(t *testing.T) {
	h := startedHarness(t)
	balance := func(amount string) unit.Message {
		m := h.game(spamChan, "")
		m.Embeds = []unit.Embed{{Title: "Balance", Fields: []unit.EmbedField{{Name: "Pokécoins", Value: amount}}}}
		return m
	}

	h.deliver(balance("5,000"))
	assert.Equal(t, int64(5000), h.account().TotalCoins)

	h.deliver(balance("1,200"))
	assert.Equal(t, int64(5000), h.account().TotalCoins)

	h.deliver(balance("6,100"))
	assert.Equal(t, int64(6100), h.account().TotalCoins)
}

func TestUnit_ConfirmButtonClicked(t *testing.T) {
	h := startedHarness(t)
	m := h.game(spamChan, "Confirm your purchase")
	m.Buttons = []unit.Button{{Label: "Confirm", CustomID: "buy:1"}}

	h.deliver(m)

	require.Len(t, h.tr.clicks, 1)
	assert.Equal(t, "buy:1", h.tr.clicks[0].CustomID)
}

func TestUnit_OwnerSay(t *testing.T) {
	h := startedHarness(t)

	h.deliver(unit.Message{ChannelID: catchChan, AuthorID: ownerID, Content: "<@" + selfID + "> say hi all"})

	says := h.tr.sent(catchChan, "hi all")
	require.Len(t, says, 1)
	assert.Equal(t, "hi all", says[0].Content)
}

func TestUnit_UpdateConfigChangesCadence(t *testing.T) {
	h := startedHarness(t)
	next := h.acct
	next.SpamSpeed = 10000

	require.NoError(t, h.unit.UpdateConfig(next))

	h.advance(9 * time.Second)
	assert.Empty(t, h.tr.sent(spamChan, "tok"))
	h.advance(time.Second)
	assert.Len(t, h.tr.sent(spamChan, "tok"), 1)
	assert.Equal(t, store.StatusRunning, h.unit.Phase())
}

func TestUnit_ExecuteCommand(t *testing.T) {
	h := startedHarness(t)
	ctx := context.Background()

	require.NoError(t, h.unit.ExecuteCommand(ctx, unit.CommandSay, "hello"))
	assert.Len(t, h.tr.sent(spamChan, "hello"), 1)

	require.NoError(t, h.unit.ExecuteCommand(ctx, unit.CommandMarketBuy, ""))
	buys := h.tr.sent(spamChan, " m b ")
	require.Len(t, buys, 1)
	assert.Equal(t, h.ids.Mention()+" m b 12345", buys[0].Content)
	h.advance(2 * time.Second)
	assert.Len(t, h.tr.sent(spamChan, " confirm"), 1)

	require.NoError(t, h.unit.ExecuteCommand(ctx, unit.CommandClick, "Confirm"))
	assert.Empty(t, h.tr.clicks)

	assert.ErrorIs(t, h.unit.ExecuteCommand(ctx, "dance", ""), unit.ErrUnknownCommand)
}

func TestUnit_ExecuteCommandErrors(t *testing.T) {
	h := newHarness(t, func(acct *store.Account, tr *fakeTransport, _ *unit.Options) {
		acct.MarketID = nil
	})
	ctx := context.Background()
	assert.ErrorIs(t, h.unit.ExecuteCommand(ctx, unit.CommandSay, "x"), unit.ErrNotReady)

	require.NoError(t, h.unit.Start(ctx))
	assert.ErrorIs(t, h.unit.ExecuteCommand(ctx, unit.CommandMarketBuy, " "), unit.ErrMissingMarketID)

	h.tr.mu.Lock()
	h.tr.noChannel = true
	h.tr.mu.Unlock()
	assert.ErrorIs(t, h.unit.ExecuteCommand(ctx, unit.CommandSay, "x"), unit.ErrChannelUnavailable)

	h.unit.Stop(ctx)
	assert.ErrorIs(t, h.unit.ExecuteCommand(ctx, unit.CommandSay, "x"), unit.ErrStopped)
}
