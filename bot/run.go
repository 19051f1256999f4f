package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Run starts the bot and blocks until the process is interrupted.
func (b *Bot) Run() error {
	if err := b.Start(); err != nil {
		return err
	}
	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	return nil
}
