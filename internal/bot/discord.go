// internal/bot/discord.go
package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-thread-bot/internal/thread"
)

// DiscordPlatform adapts a discordgo session to the Platform interface.
type DiscordPlatform struct {
	session *discordgo.Session
}

func NewDiscordPlatform(session *discordgo.Session) *DiscordPlatform {
	return &DiscordPlatform{session: session}
}

func (p *DiscordPlatform) SendMessage(channelID, content string) (string, error) {
	msg, err := p.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *DiscordPlatform) EditMessage(channelID, messageID, content string) error {
	_, err := p.session.ChannelMessageEdit(channelID, messageID, content)
	return err
}

func (p *DiscordPlatform) CreateThread(channelID, messageID, title string, autoArchiveMinutes int) (string, error) {
	threadChannel, err := p.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                title,
		AutoArchiveDuration: autoArchiveMinutes,
	})
	if err != nil {
		return "", err
	}
	return threadChannel.ID, nil
}

func (p *DiscordPlatform) ArchiveThread(threadID, reason string) error {
	archived := true
	_, err := p.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
	}, discordgo.WithAuditLogReason(reason))
	return err
}

// Bot wires a discordgo session to the message router and slash commands.
type Bot struct {
	session  *discordgo.Session
	handler  *Handler
	contexts *thread.Service
	log      *zap.SugaredLogger
	botID    string
}

func NewBot(session *discordgo.Session, contexts *thread.Service, streamer Streamer, log *zap.SugaredLogger) (*Bot, error) {
	user, err := session.User("@me")
	if err != nil {
		return nil, err
	}

	b := &Bot{
		session:  session,
		contexts: contexts,
		log:      log,
		botID:    user.ID,
	}
	b.handler = NewHandler(NewDiscordPlatform(session), contexts, streamer, log, user.ID)

	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	msg := InboundMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		Content:   m.Content,
		IsThread:  b.isThreadChannel(m.ChannelID),
	}
	for _, mention := range m.Mentions {
		msg.Mentions = append(msg.Mentions, mention.ID)
	}

	go b.handler.HandleMessage(context.Background(), msg)
}

// isThreadChannel resolves the channel kind, preferring the session state
// cache over a REST lookup.
func (b *Bot) isThreadChannel(channelID string) bool {
	channel, err := b.session.State.Channel(channelID)
	if err != nil {
		channel, err = b.session.Channel(channelID)
		if err != nil {
			b.log.Warnw("failed to resolve channel", "channel", channelID, "error", err)
			return false
		}
	}
	return channel.IsThread()
}
