// internal/bot/commands.go
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"discord-thread-bot/internal/ai"
)

// cleanupMaxAgeHours is the fixed age threshold used by /cleanup-threads.
const cleanupMaxAgeHours = 24

// RegisterCommands registers the slash command surface. Registration goes
// through the retry helper since it races with Discord's command cache on
// startup.
func (b *Bot) RegisterCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "close-thread",
			Description: "Closes the current thread and archives the conversation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for closing the thread",
					Required:    false,
				},
			},
		},
		{
			Name:        "new-thread",
			Description: "Force create a new thread for a fresh conversation",
		},
		{
			Name:        "context-size",
			Description: "Show the current conversation context size",
		},
		{
			Name:        "bot-stats",
			Description: "Show bot statistics and active threads",
		},
		{
			Name:        "cleanup-threads",
			Description: "Clean up old inactive threads (Admin only)",
		},
	}

	for _, cmd := range commands {
		err := ai.RetryWithBackoff(context.Background(), b.log, 3, time.Second, func() error {
			_, err := b.session.ApplicationCommandCreate(b.botID, "", cmd)
			return err
		})
		if err != nil {
			return fmt.Errorf("error creating %q command: %w", cmd.Name, err)
		}
	}

	b.log.Infow("slash commands registered", "count", len(commands))
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "close-thread":
		b.handleCloseThread(i)
	case "new-thread":
		b.handleNewThread(i)
	case "context-size":
		b.handleContextSize(i)
	case "bot-stats":
		b.handleBotStats(i)
	case "cleanup-threads":
		b.handleCleanupThreads(i)
	}
}

func (b *Bot) handleCloseThread(i *discordgo.InteractionCreate) {
	if !b.isThreadChannel(i.ChannelID) {
		b.respondEphemeral(i, "❌ This command can only be used in threads.")
		return
	}

	var reason string
	if options := i.ApplicationCommandData().Options; len(options) > 0 {
		reason = options[0].StringValue()
	}

	b.contexts.Archive(i.ChannelID)

	confirmation := "✅ Thread closed."
	if reason != "" {
		confirmation = fmt.Sprintf("✅ Thread closed (Reason: %s).", reason)
	}
	b.respondEphemeral(i, confirmation)

	archiveReason := reason
	if archiveReason == "" {
		archiveReason = "Thread closed by user command"
	}
	if err := b.handler.platform.ArchiveThread(i.ChannelID, archiveReason); err != nil {
		b.log.Errorw("failed to archive discord thread", "thread", i.ChannelID, "error", err)
	}

	b.log.Infow("thread closed", "thread", i.ChannelID, "user", interactionUser(i).ID, "reason", reason)
}

func (b *Bot) handleNewThread(i *discordgo.InteractionCreate) {
	if b.isThreadChannel(i.ChannelID) {
		b.respondEphemeral(i, "❌ You are already in a thread. Use this command in the main channel to create a new thread.")
		return
	}

	b.respondEphemeral(i, "💡 To start a new conversation, simply mention me in this channel and I'll create a new thread for you!")
}

func (b *Bot) handleContextSize(i *discordgo.InteractionCreate) {
	if !b.isThreadChannel(i.ChannelID) {
		b.respondEphemeral(i, "❌ This command can only be used in threads.")
		return
	}

	threadContext := b.contexts.GetContext(i.ChannelID)
	if threadContext == nil {
		b.respondEphemeral(i, "⚠️ No context found for this thread.")
		return
	}

	totalCharacters := 0
	for _, m := range threadContext.Messages {
		totalCharacters += len(m.Content)
	}

	status := "🔴 Inactive"
	if threadContext.IsActive {
		status = "🟢 Active"
	}

	b.respondEphemeral(i, strings.Join([]string{
		"📊 **Thread Context Information**",
		fmt.Sprintf("• Messages: %d", threadContext.MessageCount),
		fmt.Sprintf("• Total characters: %d", totalCharacters),
		fmt.Sprintf("• Estimated tokens: %d", ai.EstimateTokens(threadContext.Messages)),
		fmt.Sprintf("• Created: <t:%d:R>", threadContext.CreatedAt.Unix()),
		fmt.Sprintf("• Last activity: <t:%d:R>", threadContext.LastActivity.Unix()),
		fmt.Sprintf("• Status: %s", status),
	}, "\n"))
}

func (b *Bot) handleBotStats(i *discordgo.InteractionCreate) {
	user := interactionUser(i)

	activeThreads := b.contexts.ActiveCount()
	userThreads := b.contexts.UserThreads(user.ID)

	activeUserThreads := 0
	for _, t := range userThreads {
		if t.IsActive {
			activeUserThreads++
		}
	}

	b.respondEphemeral(i, strings.Join([]string{
		"🤖 **Bot Statistics**",
		fmt.Sprintf("• Active threads: %d", activeThreads),
		fmt.Sprintf("• Your threads: %d", len(userThreads)),
		fmt.Sprintf("• Your active threads: %d", activeUserThreads),
	}, "\n"))
}

func (b *Bot) handleCleanupThreads(i *discordgo.InteractionCreate) {
	b.respondEphemeral(i, b.cleanupThreads(i))
}

// cleanupThreads runs the admin-gated cleanup and returns the reply text.
// Non-administrators are rejected before any store access.
func (b *Bot) cleanupThreads(i *discordgo.InteractionCreate) string {
	if !hasAdminPermission(i) {
		return "❌ You need Administrator permissions to use this command."
	}

	cleanedCount := b.contexts.Cleanup(cleanupMaxAgeHours)

	b.log.Infow("thread cleanup performed", "user", interactionUser(i).ID, "count", cleanedCount)
	return fmt.Sprintf("✅ Cleaned up %d old thread contexts.", cleanedCount)
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Errorw("failed to respond to interaction", "error", err)
	}
}

func hasAdminPermission(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// interactionUser resolves the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}
