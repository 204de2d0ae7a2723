package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixSent = "sent:"
)

const (
	DefaultDripTopic   = "drip_messages"
	DefaultConfigTopic = "campaign_config_events"
)

const (
	DefaultMongoDBName        = "dripline"
	DefaultAudienceCollection = "members"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit       = 100
	MaxLimit           = 1000
	DefaultTruncateLen = 100
)

const (
	// rules created without an explicit position get spaced slots so
	// later inserts can go between them
	RulePositionStep = 10
)

const (
	// sent markers never expire unless configured otherwise
	DefaultSendTTLSeconds = 0
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)
