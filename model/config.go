package model

import "time"

// Config 存储应用程序的启动配置
type Config struct {
	BotToken          string
	AppID             string
	LogChannelID      string
	DataDir           string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	ClassifierTimeout time.Duration
	DashboardAddr     string
	DashboardPassword string
	JWTSecret         string
	DigestCron        string
	DigestChannelIDs  []string
}
