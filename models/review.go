// Package models defines data structures for the review spider.
package models

import "time"

// Review represents one normalized user review fetched from the comment API.
// Score is preserved verbatim as the API returned it; an absent score stays
// empty rather than being coerced to zero.
type Review struct {
	Author      string `csv:"author" json:"author"`
	Date        string `csv:"date" json:"date"`
	Score       string `csv:"score" json:"score"`
	Content     string `csv:"content" json:"content"`
	Location    string `csv:"location" json:"location"`
	Tags        string `csv:"tags" json:"tags"`
	UsefulCount int    `csv:"useful_count" json:"useful_count"`
	ReplyCount  int    `csv:"reply_count" json:"reply_count"`
	ImageCount  int    `csv:"image_count" json:"image_count"`
	Identity    string `csv:"identity" json:"identity"`
	CommentID   string `csv:"comment_id" json:"comment_id"`
}

// StopReason records why a retrieval run terminated.
type StopReason string

const (
	// StopCompleted is the normal completion path: a structurally valid
	// page came back with zero items.
	StopCompleted StopReason = "completed"
	// StopNoReviews means the first page reported a total of zero reviews.
	StopNoReviews StopReason = "no_reviews"
	// StopMaxPages means the configured page ceiling was reached.
	StopMaxPages StopReason = "max_pages"
	// StopFailures means the consecutive-failure ceiling was reached.
	StopFailures StopReason = "consecutive_failures"
	// StopMalformed means a response body lacked the expected result envelope.
	StopMalformed StopReason = "malformed_response"
	// StopDecode means a response body was not valid JSON.
	StopDecode StopReason = "decode_error"
	// StopCancelled means the run context was cancelled.
	StopCancelled StopReason = "cancelled"
)

// RunResult holds the overall outcome of one retrieval run. A run always
// produces a result, even when it stops early; whatever was accumulated
// before the stop is preserved here.
type RunResult struct {
	Reviews      []*Review
	StopReason   StopReason
	ServerTotal  int
	PagesFetched int
	RequestCount int
	RetryCount   int
	ErrorCount   int
	ErrorsByType map[string]int
	StartTime    time.Time
	EndTime      time.Time
}
