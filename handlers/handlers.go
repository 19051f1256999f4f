package handlers

import (
	"context"
	"discord-moderator/bot"
	"discord-moderator/commands"
	"log"

	"github.com/bwmarrin/discordgo"
)

// Register installs the slash commands and gateway handlers on the bot's
// session. It must run before Start.
func Register(b *bot.Bot) {
	b.Commands = commands.GenerateCommands()
	b.CommandHandlers = commandHandlers(b)
	addHandlers(b)
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
		log.Printf("Watching %d guilds", len(r.Guilds))
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		handleMessageCreate(s, m, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		handleInteractionCreate(s, i, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m.Member != nil {
			b.Platform.RememberUser(m.User)
		}
	})
}

func handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate, b *bot.Bot) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	b.Pipeline.HandleMessage(context.Background(), b.Platform.MessageFrom(m.Message))
}
