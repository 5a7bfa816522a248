package config

type AppConfig struct {
	APIPort       string `env:"PORT,required" envDefault:"12333"`
	APIKey        string `env:"API_KEY,required"`
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
	RabbitMQURL   string `env:"RABBITMQ_URL"`
	// MessageIDDomain is the right-hand side of generated Message-Id headers.
	// Empty means the sender's own domain is used.
	MessageIDDomain string `env:"MESSAGE_ID_DOMAIN"`
}

type DatabaseConfig struct {
	Host            string `env:"SENDFRAME_POSTGRES_HOST,required"`
	Port            string `env:"SENDFRAME_POSTGRES_PORT,required"`
	User            string `env:"SENDFRAME_POSTGRES_USER,required"`
	DBName          string `env:"SENDFRAME_POSTGRES_DB_NAME,required"`
	Password        string `env:"SENDFRAME_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"SENDFRAME_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"SENDFRAME_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"SENDFRAME_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"SENDFRAME_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"SENDFRAME_POSTGRES_SSL_MODE" envDefault:"require"`
}

type BounceSweepConfig struct {
	// Cron schedule for the periodic bounce sweep across all senders.
	Schedule string `env:"BOUNCE_SWEEP_SCHEDULE" envDefault:"0 6 * * *"`
	// Lookback window handed to the IMAP SINCE criterion.
	LookbackHours int `env:"BOUNCE_SWEEP_LOOKBACK_HOURS" envDefault:"24"`
}
