package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string `mapstructure:"PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	AccessTokenSecret    string `mapstructure:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret   string `mapstructure:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTLMin    int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHours int    `mapstructure:"REFRESH_TOKEN_TTL_HOURS"`
	BcryptCost           int    `mapstructure:"BCRYPT_COST"`

	BucketName      string `mapstructure:"BUCKET_NAME"`
	BucketRegion    string `mapstructure:"BUCKET_REGION"`
	AccessKey       string `mapstructure:"ACCESS_KEY"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	DiscordBotToken  string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordChannelID string `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
}

func LoadConfig() *Config {
	viper.SetDefault("PORT", "5000")
	viper.SetDefault("DATABASE_PATH", "metroplex.db")
	viper.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	viper.SetDefault("REFRESH_TOKEN_TTL_HOURS", 24)
	viper.SetDefault("BCRYPT_COST", 10)

	viper.BindEnv("ACCESS_TOKEN_SECRET")
	viper.BindEnv("REFRESH_TOKEN_SECRET")
	viper.BindEnv("BUCKET_NAME")
	viper.BindEnv("BUCKET_REGION")
	viper.BindEnv("ACCESS_KEY")
	viper.BindEnv("SECRET_ACCESS_KEY")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}
