package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/stake-plus/catchfleet/src/store"
	"github.com/stake-plus/catchfleet/src/unit"
)

var ErrNoToken = errors.New("account has no session token")

// Config tunes every session built by NewFactory.
type Config struct {
	// SendEvery is the minimum spacing between outbound messages.
	SendEvery time.Duration
	SendBurst int
}

func DefaultConfig() Config {
	return Config{SendEvery: 750 * time.Millisecond, SendBurst: 3}
}

// NewFactory returns a factory that builds one discordgo session per account.
func NewFactory(cfg Config) unit.TransportFactory {
	if cfg.SendEvery <= 0 {
		cfg.SendEvery = DefaultConfig().SendEvery
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = DefaultConfig().SendBurst
	}
	return func(acct store.Account) (unit.Transport, error) {
		return NewSession(acct, cfg)
	}
}

// Session is a unit.Transport backed by a user-token gateway connection.
type Session struct {
	accountID uint
	dg        *discordgo.Session
	limiter   *rate.Limiter

	ready atomic.Bool

	mu       sync.Mutex
	removers []func()
}

func NewSession(acct store.Account, cfg Config) (*Session, error) {
	if acct.Token == "" {
		return nil, ErrNoToken
	}
	dg, err := discordgo.New(acct.Token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	dg.StateEnabled = true

	return &Session{
		accountID: acct.ID,
		dg:        dg,
		limiter:   rate.NewLimiter(rate.Every(cfg.SendEvery), cfg.SendBurst),
	}, nil
}

func (s *Session) Open(ctx context.Context, sink unit.EventSink) error {
	s.mu.Lock()
	s.removers = append(s.removers,
		s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			s.ready.Store(true)
			if r.User == nil {
				return
			}
			sink.HandleReady(r.User.ID, userTag(r.User))
		}),
		s.dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
			s.ready.Store(true)
		}),
		s.dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
			s.ready.Store(false)
		}),
		s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if m.Message == nil || m.Author == nil {
				return
			}
			sink.HandleMessage(convertMessage(m.Message))
		}),
		s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
			if r.MessageReaction == nil {
				return
			}
			sink.HandleReaction(convertReaction(r.MessageReaction))
		}),
	)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	for _, remove := range s.removers {
		remove()
	}
	s.removers = nil
	s.mu.Unlock()
	s.ready.Store(false)
	return s.dg.Close()
}

func (s *Session) Ready() bool {
	return s.ready.Load()
}

func (s *Session) HasChannel(channelID string) bool {
	if channelID == "" {
		return false
	}
	if s.dg.State != nil {
		if ch, err := s.dg.State.Channel(channelID); err == nil && ch != nil {
			return true
		}
	}
	ch, err := s.dg.Channel(channelID)
	return err == nil && ch != nil
}

func (s *Session) Send(ctx context.Context, channelID, content string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	msg, err := s.dg.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Click presses a message button the way the official client does.
func (s *Session) Click(ctx context.Context, m unit.Message, b unit.Button) error {
	if b.CustomID == "" {
		return fmt.Errorf("button %q has no custom id", b.Label)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	sessionID := ""
	if s.dg.State != nil {
		sessionID = s.dg.State.SessionID
	}
	payload := interactionPayload(m, b, sessionID, nonce(s.accountID, m.ID, b.CustomID))
	_, err := s.dg.RequestWithBucketID("POST", discordgo.EndpointAPI+"interactions", payload,
		discordgo.EndpointAPI+"interactions", discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("discord: account %d click %q failed: %v", s.accountID, b.Label, err)
	}
	return err
}

type componentData struct {
	ComponentType discordgo.ComponentType `json:"component_type"`
	CustomID      string                  `json:"custom_id"`
}

type interactionRequest struct {
	Type          discordgo.InteractionType `json:"type"`
	Nonce         string                    `json:"nonce"`
	GuildID       string                    `json:"guild_id,omitempty"`
	ChannelID     string                    `json:"channel_id"`
	MessageID     string                    `json:"message_id"`
	ApplicationID string                    `json:"application_id"`
	SessionID     string                    `json:"session_id"`
	Data          componentData             `json:"data"`
}

func interactionPayload(m unit.Message, b unit.Button, sessionID, nonce string) interactionRequest {
	return interactionRequest{
		Type:          discordgo.InteractionMessageComponent,
		Nonce:         nonce,
		GuildID:       m.GuildID,
		ChannelID:     m.ChannelID,
		MessageID:     m.ID,
		ApplicationID: m.AuthorID,
		SessionID:     sessionID,
		Data: componentData{
			ComponentType: discordgo.ButtonComponent,
			CustomID:      b.CustomID,
		},
	}
}

func nonce(accountID uint, messageID, customID string) string {
	seed := fmt.Sprintf("%d:%s:%s:%d", accountID, messageID, customID, time.Now().UnixNano())
	return strconv.FormatUint(xxhash.ChecksumString64(seed)>>1, 10)
}

func userTag(u *discordgo.User) string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}
