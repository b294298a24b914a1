package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ServiceName        = "postapi"
	DefaultMongoDBName = "postapi"
)

const (
	// DefaultDrainLimit is the number of queue items handled per drain cycle.
	DefaultDrainLimit           = 10
	DefaultDrainIntervalSeconds = 60
	DefaultLeaseSeconds         = 3600
	DefaultListLimit            = 50
)

const (
	DefaultProviderUserID = 2
	DefaultURLPattern     = `^https://.+$`
)

const (
	QueueBackendPostgres = "postgres"
	QueueBackendSQLite   = "sqlite"
	QueueBackendRedis    = "redis"
)

const (
	ProviderSourceConfig   = "config"
	ProviderSourcePostgres = "postgres"
)

const (
	ContentDriverMySQL  = "mysql"
	ContentDriverSQLite = "sqlite"
)

const (
	BrokerTypeKafka = "kafka"
)

const (
	RedisKeyPrefixQueue = "postapi:queue:"
)

const (
	OutcomesCollection = "post_api_outcomes"
)

const (
	HeaderProvider = "X-Post-API-Provider"
	HeaderKey      = "X-Post-API-Key"
)
