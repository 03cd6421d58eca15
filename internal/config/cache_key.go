package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizPaperKey returns the cache key for a quiz's student-facing paper.
func (r *CacheKeyStruct) QuizPaperKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:paper", quizID)
}

// QuizAnswerKeyKey returns the cache key for a quiz's answer key hash.
func (r *CacheKeyStruct) QuizAnswerKeyKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:key", quizID)
}

// LeaderboardImageKey returns the cache key for a rendered leaderboard PNG.
// version changes whenever rankings are recalculated.
func (r *CacheKeyStruct) LeaderboardImageKey(quizID string, version int64) string {
	return fmt.Sprintf("quiz:%s:leaderboard:%d:png", quizID, version)
}

// JoinRateKey returns the counter key for join attempts from one client.
func (r *CacheKeyStruct) JoinRateKey(clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:join:%s:%d", clientIP, window)
}

// QuizMonitorChannel returns the Redis PubSub channel name for a quiz monitor.
func (r *CacheKeyStruct) QuizMonitorChannel(quizID string) string {
	return fmt.Sprintf("quiz:%s:monitor", quizID)
}

// RevokedTokenKey marks a teacher token id as logged out until it expires.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

var CacheKey = NewCacheKeyStruct()
