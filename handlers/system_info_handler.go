package handlers

import (
	"discord-moderator/bot"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

func SystemInfoHandler(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	// Get CPU info
	cpuCount, _ := cpu.Counts(true)
	cpuPercent, _ := cpu.Percent(0, false)
	cpuUsage := 0.0
	if len(cpuPercent) > 0 {
		cpuUsage = cpuPercent[0]
	}

	// Get memory info
	vm, _ := mem.VirtualMemory()
	var memUsed, memTotal uint64
	var memPercent float64
	if vm != nil {
		memUsed, memTotal, memPercent = vm.Used/1024/1024, vm.Total/1024/1024, vm.UsedPercent
	}

	// Get host info
	platform, kernel := "unknown", "unknown"
	if hostInfo, err := host.Info(); err == nil {
		platform = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		kernel = hostInfo.KernelVersion
	}

	// Get audit database size
	var dbSize int64
	if fi, err := os.Stat(filepath.Join(b.GetConfig().DataDir, "audit.db")); err == nil {
		dbSize = fi.Size() / 1024 / 1024 // in MB
	}

	st := b.Status()
	rules := 0
	for _, r := range b.Store.GetRules() {
		if r.Enabled {
			rules++
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: "Moderator status",
		Color: 0x5865F2, // Discord Blurple
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💻 OS", Value: platform, Inline: true},
			{Name: "🔧 Kernel", Value: kernel, Inline: true},
			{Name: "🐹 Go", Value: runtime.Version(), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU usage", Value: fmt.Sprintf("%.1f%% (bot %.1f%%)", cpuUsage, st.CPUPercent), Inline: true},
			{Name: "🧠 Memory", Value: fmt.Sprintf("%.1f%% (%d MB / %d MB, bot %d MB)", memPercent, memUsed, memTotal, st.MemoryMB), Inline: true},
			{Name: "🗃️ Audit log", Value: fmt.Sprintf("%d MB", dbSize), Inline: true},
			{Name: "⏱️ Gateway latency", Value: s.HeartbeatLatency().String(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", st.Goroutines), Inline: true},
			{Name: "🌍 Guilds", Value: fmt.Sprintf("%d", st.Guilds), Inline: true},
			{Name: "📜 Enabled rules", Value: fmt.Sprintf("%d", rules), Inline: true},
			{Name: "⚠️ Warned users", Value: fmt.Sprintf("%d", st.WarnedUsers), Inline: true},
			{Name: "🔨 Pending bans", Value: fmt.Sprintf("%d", st.PendingBans), Inline: true},
			{Name: "⏳ Uptime", Value: (time.Duration(st.UptimeSeconds) * time.Second).String(), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("System monitor・today %s", time.Now().Format("15:04")),
		},
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Failed to respond to status command: %v", err)
	}
}
