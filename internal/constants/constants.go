package constants

import "time"

// Redis keys
const (
	RedisKeyState        = "ledger:state"
	RedisKeyStateVersion = "ledger:state:version"
)

// Redis Pub/Sub channels
const (
	PubSubChannelAll      = "ledger:all"
	PubSubChannelPrefix   = "ledger:kind:"
	PubSubTokenPrefix     = "ledger:token:"
)

// Flag keys mirrored in the flags store
const (
	FlagPaused = "ledger.paused"
)

// ClickHouse
const (
	ClickHouseEventsTable = "ledger_events"
)

// HTTP
const (
	HeaderCaller          = "X-Caller-Address"
	HeaderAPIKey          = "X-API-Key"
	DefaultRequestTimeout = 5 * time.Second
)
