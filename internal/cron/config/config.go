package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Email sync dispatch, every minute
	CronScheduleEmailSync string `env:"CRON_SCHEDULE_EMAIL_SYNC" envDefault:"30 * * * * *"`
}
