package unit

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/catchfleet/src/clock"
	"github.com/stake-plus/catchfleet/src/logging"
	"github.com/stake-plus/catchfleet/src/rarity"
	"github.com/stake-plus/catchfleet/src/store"
)

const (
	mailboxSize = 256
	ioTimeout   = 15 * time.Second
)

// Timing holds the fixed durations of the automation loop.
type Timing struct {
	WorkDuration   time.Duration
	RestDuration   time.Duration
	BalanceInitial time.Duration
	BalanceEvery   time.Duration
	HintRetryMin   time.Duration
	HintRetryMax   time.Duration
	ReadyTimeout   time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		WorkDuration:   time.Hour,
		RestDuration:   10 * time.Minute,
		BalanceInitial: 5 * time.Second,
		BalanceEvery:   10 * time.Minute,
		HintRetryMin:   5 * time.Second,
		HintRetryMax:   8 * time.Second,
		ReadyTimeout:   30 * time.Second,
	}
}

type Options struct {
	Clock      clock.Clock
	Timing     Timing
	Identities Identities
	Rarity     *rarity.Table
	// Rules replaces the default classifier when non-nil.
	Rules []Rule
	// Jitter picks a delay in [min, max].
	Jitter func(min, max time.Duration) time.Duration
	// Token produces the filler text sent by the spam timer.
	Token func() string
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.NewRealClock()
	}
	if o.Timing == (Timing{}) {
		o.Timing = DefaultTiming()
	}
	if o.Identities.GameID == "" {
		o.Identities = DefaultIdentities()
	}
	if o.Rarity == nil {
		o.Rarity = rarity.Default()
	}
	if o.Rules == nil {
		o.Rules = DefaultRules()
	}
	if o.Jitter == nil {
		o.Jitter = randomBetween
	}
	if o.Token == nil {
		o.Token = randomToken
	}
	return o
}

type timerKind int

const (
	timerSpam timerKind = iota
	timerBalance
	timerRest
)

type namedTimer struct {
	t   clock.Timer
	seq uint64
}

type pendingHint struct {
	channelID string
	messageID string
	retrying  bool
}

// Unit drives one account. All state below the mailbox is owned by the
// actor goroutine and only touched from closures it runs.
type Unit struct {
	id        uint
	runID     string
	store     Store
	transport Transport
	opts      Options

	mailbox chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	ready   chan struct{}
	stop    sync.Once

	account store.Account
	phase   store.Status
	closed  bool
	selfID  string
	pending *pendingHint
	epoch   uint64
	seq     uint64
	named   map[timerKind]namedTimer
	adhoc   map[uint64]clock.Timer
}

// New creates a unit for acct and starts its actor. Call Start to log in.
func New(acct store.Account, st Store, tr Transport, opts Options) *Unit {
	ctx, cancel := context.WithCancel(context.Background())
	u := &Unit{
		id:        acct.ID,
		runID:     uuid.NewString(),
		store:     st,
		transport: tr,
		opts:      opts.withDefaults(),
		mailbox:   make(chan func(), mailboxSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
		account:   acct,
		phase:     store.StatusStopped,
		named:     make(map[timerKind]namedTimer),
		adhoc:     make(map[uint64]clock.Timer),
	}
	go u.run()
	return u
}

func (u *Unit) ID() uint { return u.id }

// RunID identifies this particular start of the account.
func (u *Unit) RunID() string { return u.runID }

func (u *Unit) run() {
	defer close(u.done)
	for {
		select {
		case <-u.ctx.Done():
			return
		case f := <-u.mailbox:
			f()
		}
	}
}

func (u *Unit) post(f func()) bool {
	if u.ctx.Err() != nil {
		return false
	}
	select {
	case <-u.ctx.Done():
		return false
	case u.mailbox <- f:
		return true
	}
}

// call runs f on the actor and waits for it.
func (u *Unit) call(f func()) error {
	finished := make(chan struct{})
	if !u.post(func() { f(); close(finished) }) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-u.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Start opens the session and waits for it to become ready.
func (u *Unit) Start(ctx context.Context) error {
	openCtx, cancel := context.WithTimeout(ctx, u.opts.Timing.ReadyTimeout)
	defer cancel()

	if err := u.transport.Open(openCtx, u); err != nil {
		return u.failLogin(ctx, err)
	}

	select {
	case <-u.ready:
		return nil
	case <-u.done:
		return ErrStopped
	case <-openCtx.Done():
		return u.failLogin(ctx, fmt.Errorf("session not ready: %w", openCtx.Err()))
	}
}

func (u *Unit) failLogin(ctx context.Context, cause error) error {
	err := &LoginError{Err: cause}
	u.shutdown()
	writeCtx := context.WithoutCancel(ctx)
	msg := fmt.Sprintf("Login failed: %v", cause)
	if logging.IsUnauthorized(cause) {
		msg = "Login failed: token rejected"
	}
	u.record(writeCtx, store.LevelError, msg)
	u.persist(writeCtx, store.StatusChange(store.StatusStopped, ""))
	return err
}

// Stop cancels every timer and tears the session down. Safe to call repeatedly.
func (u *Unit) Stop(ctx context.Context) {
	if u.shutdown() {
		u.record(context.WithoutCancel(ctx), store.LevelInfo, "Bot stopped.")
	}
}

// shutdown reports whether this call performed the teardown.
func (u *Unit) shutdown() bool {
	first := false
	u.stop.Do(func() {
		first = true
		_ = u.call(func() {
			u.closed = true
			u.phase = store.StatusStopped
			u.pending = nil
			u.cancelAllTimers()
		})
		u.cancel()
		<-u.done
		if err := u.transport.Close(); err != nil {
			log.Printf("unit %d: close session: %v", u.id, err)
		}
	})
	return first
}

// Phase returns the current lifecycle phase.
func (u *Unit) Phase() store.Status {
	phase := store.StatusStopped
	_ = u.call(func() { phase = u.phase })
	return phase
}

// Resume lifts a captcha block. The solution is not verified.
func (u *Unit) Resume(ctx context.Context) error {
	return u.call(func() {
		if u.closed || u.phase != store.StatusCaptcha {
			return
		}
		u.transition(store.StatusRunning)
		u.persist(u.ctx, store.StatusChange(store.StatusRunning, ""))
		u.armSpam()
		u.armBalance(u.opts.Timing.BalanceInitial)
		u.armWork()
		u.record(u.ctx, store.LevelSuccess, "Resumed manually.")
	})
}

// UpdateConfig swaps the account snapshot and re-arms spam on the new cadence.
func (u *Unit) UpdateConfig(acct store.Account) error {
	return u.call(func() {
		if u.closed {
			return
		}
		u.account = acct
		if u.phase == store.StatusRunning {
			u.armSpam()
		}
	})
}

// Command kinds accepted by ExecuteCommand.
const (
	CommandSay       = "say"
	CommandMarketBuy = "market_buy"
	CommandClick     = "click"
)

const marketConfirmDelay = 2 * time.Second

// ExecuteCommand runs an operator command against the spam channel.
func (u *Unit) ExecuteCommand(ctx context.Context, kind, payload string) error {
	var result error
	err := u.call(func() {
		result = u.execute(kind, payload)
	})
	if err != nil {
		return err
	}
	return result
}

func (u *Unit) execute(kind, payload string) error {
	if u.closed || u.phase == store.StatusStopped || !u.transport.Ready() {
		return ErrNotReady
	}
	channelID := u.account.SpamChannelID
	if channelID == "" || !u.transport.HasChannel(channelID) {
		return ErrChannelUnavailable
	}
	switch kind {
	case CommandSay:
		_, err := u.send(channelID, payload)
		return err
	case CommandMarketBuy:
		listing := strings.TrimSpace(payload)
		if listing == "" && u.account.MarketID != nil {
			listing = strings.TrimSpace(*u.account.MarketID)
		}
		if listing == "" {
			return ErrMissingMarketID
		}
		if _, err := u.send(channelID, u.opts.Identities.Mention()+" m b "+listing); err != nil {
			return err
		}
		u.later(marketConfirmDelay, func() {
			u.send(channelID, u.opts.Identities.Mention()+" confirm")
		})
		return nil
	case CommandClick:
		u.record(u.ctx, store.LevelInfo, "Click requested ("+payload+"); interactive lookup is not supported.")
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
}

// Transport events.

func (u *Unit) HandleReady(selfID, tag string) {
	u.post(func() { u.onReady(selfID, tag) })
}

func (u *Unit) HandleMessage(m Message) {
	u.post(func() { u.onMessage(m) })
}

func (u *Unit) HandleReaction(r Reaction) {
	u.post(func() { u.onReaction(r) })
}

func (u *Unit) onReady(selfID, tag string) {
	if u.closed {
		return
	}
	u.selfID = selfID
	if u.phase != store.StatusStopped {
		// reconnect: the session resumed, nothing to re-arm
		return
	}
	u.transition(store.StatusRunning)
	u.record(u.ctx, store.LevelSuccess, "Logged in as "+tag)
	u.armSpam()
	u.armWork()
	u.armBalance(u.opts.Timing.BalanceInitial)
	u.persist(u.ctx, store.StatusChange(store.StatusRunning, ""))
	close(u.ready)
}

func (u *Unit) active() bool {
	return !u.closed && (u.phase == store.StatusRunning || u.phase == store.StatusResting)
}

func (u *Unit) inScope(channelID string) bool {
	return channelID != "" && (channelID == u.account.CatchChannelID || channelID == u.account.SpamChannelID)
}

func (u *Unit) onMessage(m Message) {
	if !u.active() || !u.inScope(m.ChannelID) || m.AuthorID == u.selfID {
		return
	}
	mc := MatchContext{SelfID: u.selfID, Account: u.account, IDs: u.opts.Identities}
	for _, a := range Classify(u.opts.Rules, mc, m) {
		if !u.active() {
			return
		}
		u.apply(a, m)
	}
}

func (u *Unit) onReaction(r Reaction) {
	if !u.active() || !u.inScope(r.ChannelID) || u.pending == nil || u.pending.retrying {
		return
	}
	if r.MessageID != u.pending.messageID || r.UserID != u.opts.Identities.GameID {
		return
	}
	if !u.isCooldownEmoji(r.Emoji) {
		return
	}
	u.pending.retrying = true
	channelID := u.pending.channelID
	delay := u.opts.Jitter(u.opts.Timing.HintRetryMin, u.opts.Timing.HintRetryMax)
	u.later(delay, func() { u.requestHint(channelID) })
}

func (u *Unit) isCooldownEmoji(emoji string) bool {
	for _, e := range u.opts.Identities.CooldownEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

func (u *Unit) apply(a Action, m Message) {
	switch act := a.(type) {
	case EnterCaptcha:
		u.enterCaptcha(act.URL)
	case RequestHint:
		u.requestHint(act.ChannelID)
	case Catch:
		u.catch(act.ChannelID, act.Names)
	case RecordCatch:
		u.recordCatch(act.Name, act.Level)
	case RecordShiny:
		u.recordShiny()
	case ClickButton:
		ctx, cancel := context.WithTimeout(u.ctx, ioTimeout)
		defer cancel()
		if err := u.transport.Click(ctx, m, act.Button); err != nil {
			log.Printf("unit %d: click %q failed: %v", u.id, act.Button.Label, err)
		}
	case SetCoins:
		u.setCoins(act.Amount)
	case AddCoins:
		u.addCoins(act.Amount)
	case Say:
		u.send(act.ChannelID, act.Text)
	}
}

func (u *Unit) enterCaptcha(url string) {
	if u.phase == store.StatusCaptcha {
		return
	}
	u.transition(store.StatusCaptcha)
	u.disarm(timerSpam)
	u.disarm(timerBalance)
	u.pending = nil
	u.persist(u.ctx, store.StatusChange(store.StatusCaptcha, url))
	u.record(u.ctx, store.LevelError, "CAPTCHA DETECTED! "+url)
}

func (u *Unit) requestHint(channelID string) {
	msgID, err := u.send(channelID, u.opts.Identities.Mention()+" h")
	if err != nil {
		if u.pending != nil && u.pending.channelID == channelID {
			u.pending.retrying = false
		}
		return
	}
	u.pending = &pendingHint{channelID: channelID, messageID: msgID}
}

// catch sends candidate i after i catch intervals; later sends drop if the phase changes first.
func (u *Unit) catch(channelID string, names []string) {
	step := u.account.CatchInterval()
	for i, name := range names {
		content := u.opts.Identities.Mention() + " c " + name
		if i == 0 {
			u.send(channelID, content)
			continue
		}
		u.later(time.Duration(i)*step, func() { u.send(channelID, content) })
	}
}

func (u *Unit) recordCatch(name string, level int) {
	fresh, err := u.store.GetAccount(u.ctx, u.id)
	if err != nil {
		log.Printf("unit %d: refetch before catch update: %v", u.id, err)
		return
	}
	now := u.opts.Clock.Now()
	changes := store.Changes{
		store.ColTotalCaught: fresh.TotalCaught + 1,
		store.ColLastActive:  now,
	}
	tier := u.opts.Rarity.Classify(name)
	switch tier {
	case rarity.Legendary:
		changes[store.ColTotalLegendary] = fresh.TotalLegendary + 1
	case rarity.Mythical:
		changes[store.ColTotalMythical] = fresh.TotalMythical + 1
	default:
		changes[store.ColTotalNormal] = fresh.TotalNormal + 1
	}
	u.persistCounters(changes)
	u.pending = nil

	msg := fmt.Sprintf("Caught a level %d %s!", level, name)
	if tier != rarity.Normal {
		msg += " (" + string(tier) + ")"
	}
	u.record(u.ctx, store.LevelSuccess, msg)
}

func (u *Unit) recordShiny() {
	fresh, err := u.store.GetAccount(u.ctx, u.id)
	if err != nil {
		log.Printf("unit %d: refetch before shiny update: %v", u.id, err)
		return
	}
	u.persistCounters(store.Changes{store.ColTotalShiny: fresh.TotalShiny + 1})
	u.record(u.ctx, store.LevelSuccess, "Caught a SHINY!")
}

// setCoins overwrites the balance but never lowers the stored counter, so a
// reading taken after a market spend is ignored until coins come back above it.
func (u *Unit) setCoins(n int64) {
	fresh, err := u.store.GetAccount(u.ctx, u.id)
	if err != nil {
		log.Printf("unit %d: refetch before balance update: %v", u.id, err)
		return
	}
	if n <= fresh.TotalCoins {
		return
	}
	u.persistCounters(store.Changes{store.ColTotalCoins: n})
}

func (u *Unit) addCoins(n int64) {
	fresh, err := u.store.GetAccount(u.ctx, u.id)
	if err != nil {
		log.Printf("unit %d: refetch before coin update: %v", u.id, err)
		return
	}
	u.persistCounters(store.Changes{store.ColTotalCoins: fresh.TotalCoins + n})
}

func (u *Unit) persistCounters(changes store.Changes) {
	ctx, cancel := context.WithTimeout(u.ctx, ioTimeout)
	defer cancel()
	updated, err := u.store.UpdateAccount(ctx, u.id, changes)
	if err != nil {
		log.Printf("unit %d: persist counters: %v", u.id, err)
		return
	}
	u.account.TotalCaught = updated.TotalCaught
	u.account.TotalCoins = updated.TotalCoins
	u.account.TotalShiny = updated.TotalShiny
	u.account.TotalLegendary = updated.TotalLegendary
	u.account.TotalMythical = updated.TotalMythical
	u.account.TotalNormal = updated.TotalNormal
	u.account.LastActive = updated.LastActive
}

// Duty cycle.

func (u *Unit) armSpam() {
	if u.phase != store.StatusRunning || u.account.SpamChannelID == "" || u.account.SpamInterval() <= 0 {
		u.disarm(timerSpam)
		return
	}
	u.arm(timerSpam, u.account.SpamInterval(), func() {
		if u.phase != store.StatusRunning {
			return
		}
		u.send(u.account.SpamChannelID, u.opts.Token())
		u.armSpam()
	})
}

func (u *Unit) armBalance(d time.Duration) {
	u.arm(timerBalance, d, func() {
		if u.phase == store.StatusCaptcha {
			return
		}
		if u.phase == store.StatusRunning {
			u.send(u.account.SpamChannelID, u.opts.Identities.Mention()+" bal")
		}
		u.armBalance(u.opts.Timing.BalanceEvery)
	})
}

func (u *Unit) armWork() {
	u.arm(timerRest, u.opts.Timing.WorkDuration, func() {
		if u.phase != store.StatusRunning {
			return
		}
		u.beginRest()
	})
}

func (u *Unit) beginRest() {
	u.transition(store.StatusResting)
	u.disarm(timerSpam)
	u.record(u.ctx, store.LevelWarning, fmt.Sprintf("Resting for %s...", u.opts.Timing.RestDuration))
	u.persist(u.ctx, store.StatusChange(store.StatusResting, ""))
	u.arm(timerRest, u.opts.Timing.RestDuration, func() {
		if u.phase != store.StatusResting {
			return
		}
		u.endRest()
	})
}

func (u *Unit) endRest() {
	u.transition(store.StatusRunning)
	u.record(u.ctx, store.LevelInfo, "Resuming work.")
	u.persist(u.ctx, store.StatusChange(store.StatusRunning, ""))
	u.armSpam()
	u.armWork()
}

// Timers.

// transition changes phase and drops every pending one-shot task.
func (u *Unit) transition(to store.Status) {
	u.phase = to
	u.epoch++
	// a dropped retry must not block the next cooldown reaction
	if u.pending != nil {
		u.pending.retrying = false
	}
	for id, t := range u.adhoc {
		t.Stop()
		delete(u.adhoc, id)
	}
}

func (u *Unit) arm(kind timerKind, d time.Duration, fn func()) {
	u.disarm(kind)
	u.seq++
	seq := u.seq
	t := u.opts.Clock.AfterFunc(d, func() {
		u.post(func() {
			if u.closed || u.named[kind].seq != seq {
				return
			}
			delete(u.named, kind)
			fn()
		})
	})
	u.named[kind] = namedTimer{t: t, seq: seq}
}

func (u *Unit) disarm(kind timerKind) {
	if nt, ok := u.named[kind]; ok {
		nt.t.Stop()
		delete(u.named, kind)
	}
}

// later runs fn after d unless the phase changed in between.
func (u *Unit) later(d time.Duration, fn func()) {
	u.seq++
	id := u.seq
	epoch := u.epoch
	u.adhoc[id] = u.opts.Clock.AfterFunc(d, func() {
		u.post(func() {
			delete(u.adhoc, id)
			if u.epoch != epoch || !u.active() {
				return
			}
			fn()
		})
	})
}

func (u *Unit) cancelAllTimers() {
	for kind := range u.named {
		u.disarm(kind)
	}
	u.epoch++
	for id, t := range u.adhoc {
		t.Stop()
		delete(u.adhoc, id)
	}
}

// I/O helpers.

// send is fire-and-forget for callers that ignore the result; failures are logged.
func (u *Unit) send(channelID, content string) (string, error) {
	ctx, cancel := context.WithTimeout(u.ctx, ioTimeout)
	defer cancel()
	id, err := u.transport.Send(ctx, channelID, content)
	if err != nil {
		if logging.IsRateLimit(err) {
			log.Printf("unit %d: rate limited sending to %s", u.id, channelID)
		} else {
			log.Printf("unit %d: send to %s failed: %v", u.id, channelID, err)
		}
	}
	return id, err
}

func (u *Unit) persist(ctx context.Context, changes store.Changes) {
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()
	if _, err := u.store.UpdateAccount(ctx, u.id, changes); err != nil {
		log.Printf("unit %d: persist %v: %v", u.id, changes[store.ColStatus], err)
	}
}

func (u *Unit) record(ctx context.Context, level store.Level, content string) {
	log.Printf("[%s] %s", u.account.Name, content)
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()
	id := u.id
	if err := u.store.AppendLog(ctx, &id, level, content); err != nil {
		log.Printf("unit %d: append log: %v", u.id, err)
	}
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomToken() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = tokenAlphabet[rand.IntN(len(tokenAlphabet))]
	}
	return string(b)
}
