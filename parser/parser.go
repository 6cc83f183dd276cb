// Package parser maps raw comment payloads onto normalized review records.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"ctrip-reviews/models"
)

// AnonymousAuthor is the sentinel used when a review carries no user info.
const AnonymousAuthor = "anonymous"

// fieldMapping derives one review column from a raw item. extract reports
// false when the source key is absent or carries an unexpected type; the
// column then falls back to its default instead of discarding the record.
type fieldMapping struct {
	name     string
	extract  func(item map[string]any) (any, bool)
	fallback any
	assign   func(r *models.Review, v any)
}

var reviewFields = []fieldMapping{
	{
		name:     "author",
		extract:  func(item map[string]any) (any, bool) { return nestedString(item, "userInfo", "userNick") },
		fallback: AnonymousAuthor,
		assign:   func(r *models.Review, v any) { r.Author = v.(string) },
	},
	{
		name:     "date",
		extract:  extractDate,
		fallback: "",
		assign:   func(r *models.Review, v any) { r.Date = v.(string) },
	},
	{
		name:     "content",
		extract:  func(item map[string]any) (any, bool) { return stringOf(item["content"]) },
		fallback: "",
		assign:   func(r *models.Review, v any) { r.Content = v.(string) },
	},
	{
		name:     "location",
		extract:  func(item map[string]any) (any, bool) { return stringOf(item["ipLocatedName"]) },
		fallback: "",
		assign:   func(r *models.Review, v any) { r.Location = v.(string) },
	},
	{
		name:     "score",
		extract:  func(item map[string]any) (any, bool) { return numberString(item["score"]) },
		fallback: "",
		assign:   func(r *models.Review, v any) { r.Score = v.(string) },
	},
	{
		name:     "tags",
		extract:  extractTags,
		fallback: "",
		assign:   func(r *models.Review, v any) { r.Tags = v.(string) },
	},
	{
		name:     "useful_count",
		extract:  func(item map[string]any) (any, bool) { return intOf(item["usefulCount"]) },
		fallback: 0,
		assign:   func(r *models.Review, v any) { r.UsefulCount = v.(int) },
	},
	{
		name:     "comment_id",
		extract:  func(item map[string]any) (any, bool) { return numberString(item["commentId"]) },
		fallback: "",
		assign:   func(r *models.Review, v any) { r.CommentID = v.(string) },
	},
	{
		name:     "image_count",
		extract:  extractImageCount,
		fallback: 0,
		assign:   func(r *models.Review, v any) { r.ImageCount = v.(int) },
	},
	{
		name:     "reply_count",
		extract:  func(item map[string]any) (any, bool) { return intOf(item["replyCount"]) },
		fallback: 0,
		assign:   func(r *models.Review, v any) { r.ReplyCount = v.(int) },
	},
	{
		name:     "identity",
		extract:  func(item map[string]any) (any, bool) { return nestedString(item, "userInfo", "identitiesName") },
		fallback: "",
		assign:   func(r *models.Review, v any) { r.Identity = v.(string) },
	},
}

// Parse maps one raw comment item onto a Review. Every column degrades to
// its default independently; Parse never fails for a JSON object input.
func Parse(item map[string]any) *models.Review {
	review := &models.Review{}
	for _, f := range reviewFields {
		value, ok := f.extract(item)
		if !ok {
			value = f.fallback
		}
		f.assign(review, value)
	}
	return review
}

// ValidateReview rejects records the pipeline cannot use.
func ValidateReview(r *models.Review) error {
	if r == nil {
		return fmt.Errorf("review is nil")
	}
	return nil
}

// extractDate keeps the first whitespace-delimited token of the raw
// publish tag ("2024-05-01 IP属地：上海" style values).
func extractDate(item map[string]any) (any, bool) {
	tag, ok := stringOf(item["publishTypeTag"])
	if !ok {
		return nil, false
	}
	fields := strings.Fields(tag.(string))
	if len(fields) == 0 {
		return "", true
	}
	return fields[0], true
}

func extractTags(item map[string]any) (any, bool) {
	raw, ok := item["recommendItems"].([]any)
	if !ok {
		return nil, false
	}
	tags := make([]string, 0, len(raw))
	for _, entry := range raw {
		tag, ok := entry.(string)
		if !ok {
			return nil, false
		}
		tags = append(tags, tag)
	}
	return strings.Join(tags, ","), true
}

func extractImageCount(item map[string]any) (any, bool) {
	images, ok := item["images"].([]any)
	if !ok {
		return nil, false
	}
	return len(images), true
}

func stringOf(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return s, true
}

// numberString preserves a scalar as the API sent it: strings pass through
// and JSON numbers are rendered without a forced decimal point.
func numberString(v any) (any, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		return nil, false
	}
}

func intOf(v any) (any, bool) {
	n, ok := v.(float64)
	if !ok || n < 0 {
		return nil, false
	}
	return int(n), true
}

func nestedString(item map[string]any, outer, inner string) (any, bool) {
	obj, ok := item[outer].(map[string]any)
	if !ok {
		return nil, false
	}
	return stringOf(obj[inner])
}
