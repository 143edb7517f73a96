package main

import "github.com/spf13/viper"

func settingDefaultConfig() {
	viper.AutomaticEnv()

	viper.BindEnv("server.addr", "SEATWATCH_ADDR")
	viper.BindEnv("server.shutdown_timeout", "SEATWATCH_SHUTDOWN_TIMEOUT")

	viper.BindEnv("postgres.dsn", "SEATWATCH_POSTGRES_DSN")

	viper.BindEnv("redis.addr", "SEATWATCH_REDIS_ADDR")
	viper.BindEnv("redis.password", "SEATWATCH_REDIS_PASSWORD")
	viper.BindEnv("redis.db", "SEATWATCH_REDIS_DB")

	viper.BindEnv("site.base_url", "SEATWATCH_SITE_URL")
	viper.BindEnv("webhook.url", "SEATWATCH_WEBHOOK_URL")

	viper.BindEnv("engine.concurrency", "SEATWATCH_CONCURRENCY")
	viper.BindEnv("engine.dispatch_rate", "SEATWATCH_DISPATCH_RATE")
	viper.BindEnv("sweep.schedule", "SEATWATCH_SWEEP_SCHEDULE")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Empty DSN keeps the in-memory store; empty Redis address keeps the
	// in-process bus and limiter.
	viper.SetDefault("postgres.dsn", "")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("site.base_url", "https://www.kobus.co.kr")
	viper.SetDefault("webhook.url", "")

	viper.SetDefault("engine.concurrency", 5)
	viper.SetDefault("engine.dispatch_rate", 10.0)
	viper.SetDefault("sweep.schedule", "@every 10m")
}
