package config

import (
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Configuration variables. These aren't user facing but useful for tuning the
// details of the game and the relay.
var (
	TickInterval = getEnvDuration("TICK_INTERVAL_MS", 60)
	CellWidth    = getEnvInt("CELL_WIDTH", 10)
	CanvasWidth  = getEnvInt("CANVAS_WIDTH", 450)
	CanvasHeight = getEnvInt("CANVAS_HEIGHT", 450)

	RelayMsgRate      = rate.Limit(getEnvInt("RELAY_MSG_RPS", 50))
	RelayMsgBurstRate = getEnvInt("RELAY_MSG_BURST", 20)
	RelayPingInterval = getEnvDuration("RELAY_PING_MS", 5000)

	ClaimExpiry       = getEnvDuration("CLAIM_EXPIRY_MS", 15000)
	HeartbeatInterval = getEnvDuration("HEARTBEAT_MS", 1000)

	MaxOpenConns = getEnvInt("MAX_OPEN_CONNS", 20)
	MaxIdleConns = getEnvInt("MAX_IDLE_CONNS", 20)
)

func getEnvInt(varName string, defaults int) int {
	val := os.Getenv(varName)
	if val == "" {
		return defaults
	}
	intVal, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return defaults
	}
	return int(intVal)
}

func getEnvDuration(varName string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(varName, defaultMillis)) * time.Millisecond
}
