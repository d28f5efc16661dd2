package core

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

type RequestID string

func NewSessionID() string {
	return "sess_" + timestamp() + "_" + shortuuid.New()
}

func NewMessageID() string {
	return uuid.NewString()
}

func NewRequestID() RequestID {
	return RequestID("req_" + timestamp() + "_" + randomSeed())
}

func timestamp() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}

func randomSeed() string {
	buffer := make([]byte, 6)
	_, _ = rand.Read(buffer)
	return hex.EncodeToString(buffer)
}
