package config

import "time"

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	PodName     string `env:"POD_NAME" envDefault:"local"`
	Namespace   string `env:"POD_NAMESPACE" envDefault:"default"`
	APIKey      string `env:"MAILSYNC_API_KEY"`
}

type MailsyncDatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN" envDefault:"50"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

type R2StorageConfig struct {
	AccountID             string `env:"CLOUDFLARE_R2_ACCOUNT_ID,required"`
	AccessKeyID           string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID,required"`
	AccessKeySecret       string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET,required"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
}

type GoogleOAuthConfig struct {
	ClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID,required"`
	ClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET,required"`
	RedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL"`
}

type GmailSyncConfig struct {
	FullMessageBatchSize  int           `env:"GMAIL_FULL_MESSAGE_BATCH_SIZE" envDefault:"300"`
	LabelUpdateBatchSize  int           `env:"GMAIL_LABEL_UPDATE_BATCH_SIZE" envDefault:"500"`
	UnreadLabel           string        `env:"GMAIL_UNREAD_LABEL" envDefault:"UNREAD"`
	SentLabel             string        `env:"GMAIL_SENT_LABEL" envDefault:"SENT"`
	TrashLabel            string        `env:"GMAIL_TRASH_LABEL" envDefault:"TRASH"`
	PartialSyncLimit      int           `env:"GMAIL_PARTIAL_SYNC_LIMIT" envDefault:"1000"`
	SyncDelayInterval     time.Duration `env:"GMAIL_SYNC_DELAY_INTERVAL" envDefault:"1s"`
	ContinuationDelay     time.Duration `env:"GMAIL_SYNC_CONTINUATION_DELAY" envDefault:"1s"`
	FetchConcurrency      int           `env:"GMAIL_FETCH_CONCURRENCY" envDefault:"10"`
	SyncLockTTL           time.Duration `env:"GMAIL_SYNC_LOCK_TTL" envDefault:"30m"`
	LabelMutationAttempts int           `env:"GMAIL_LABEL_MUTATION_ATTEMPTS" envDefault:"6"`
}

// DefaultGmailSyncConfig mirrors the env defaults, for callers that do not parse the environment.
func DefaultGmailSyncConfig() *GmailSyncConfig {
	return &GmailSyncConfig{
		FullMessageBatchSize:  300,
		LabelUpdateBatchSize:  500,
		UnreadLabel:           "UNREAD",
		SentLabel:             "SENT",
		TrashLabel:            "TRASH",
		PartialSyncLimit:      1000,
		SyncDelayInterval:     time.Second,
		ContinuationDelay:     time.Second,
		FetchConcurrency:      10,
		SyncLockTTL:           30 * time.Minute,
		LabelMutationAttempts: 6,
	}
}
