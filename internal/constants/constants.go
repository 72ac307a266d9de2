package constants

import "time"

var SchedulerConfig = struct {
	DefaultInterval time.Duration
	FetchTimeout    time.Duration
	PersistTimeout  time.Duration
	LockTTL         time.Duration
}{
	DefaultInterval: 30 * time.Minute, // 30분 - 로스터 확인 주기
	FetchTimeout:    60 * time.Second, // 외부 API가 멈춰도 스케줄러가 묶이지 않도록
	PersistTimeout:  30 * time.Second,
	LockTTL:         10 * time.Minute, // 사이클 최대 소요 시간보다 길게
}

var DeliveryConfig = struct {
	Timeout     time.Duration
	Concurrency int
}{
	Timeout:     10 * time.Second,
	Concurrency: 8,
}

var CircuitBreakerConfig = struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}{
	FailureThreshold: 3,               // 3회 연속 실패 시 대상 차단
	ResetTimeout:     5 * time.Minute, // 차단 후 재시도까지 대기
}

var APIConfig = struct {
	XIVAPIBaseURL    string
	LodestoneBaseURL string
	UserAgent        string
	MaxLodestonePage int
}{
	XIVAPIBaseURL:    "https://xivapi.com",
	LodestoneBaseURL: "https://na.finalfantasyxiv.com",
	UserAgent:        "Mozilla/5.0 (compatible; FCLogBot/1.0)",
	MaxLodestonePage: 20,
}

var CacheKeys = struct {
	NotificationConfig string
	CycleLockPrefix    string
	LastCyclePrefix    string
}{
	NotificationConfig: "fclog:config:status_updates",
	CycleLockPrefix:    "fclog:cycle_lock:",
	LastCyclePrefix:    "fclog:last_cycle:",
}

// Discord palette values, matching discord.Colour.
var EventColors = struct {
	Joined      int
	Left        int
	Renamed     int
	RankChanged int
}{
	Joined:      0x2ecc71,
	Left:        0xe74c3c,
	Renamed:     0xe67e22,
	RankChanged: 0x9b59b6,
}

var StringLimits = struct {
	EmbedTitle      int
	EmbedFieldName  int
	EmbedFieldValue int
	MaxEmbedFields  int
	WebhookUsername int
}{
	EmbedTitle:      256,
	EmbedFieldName:  256,
	EmbedFieldValue: 1024,
	MaxEmbedFields:  25,
	WebhookUsername: 80,
}
