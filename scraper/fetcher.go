package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"ctrip-reviews/config"
)

// PageRequest addresses one bounded slice of the review collection.
// Built fresh per page; carries no session state.
type PageRequest struct {
	PoiID    int
	Page     int
	PageSize int
}

// PageResult is the structural payload of one successful page fetch.
// Items stay untyped here; normalization happens per item in the parser.
type PageResult struct {
	Items      []any
	TotalCount int
}

// PageFetcher issues exactly one request for one page of reviews. It does
// not retry, sleep, or touch session state; the controller owns all of that.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*PageResult, error)
}

type commentArg struct {
	ChannelType  int `json:"channelType"`
	CollapseType int `json:"collapseType"`
	CommentTagID int `json:"commentTagId"`
	PageIndex    int `json:"pageIndex"`
	PageSize     int `json:"pageSize"`
	PoiID        int `json:"poiId"`
	SourceType   int `json:"sourceType"`
	SortType     int `json:"sortType"`
	StarType     int `json:"starType"`
}

type commentHead struct {
	CID       string `json:"cid"`
	CTok      string `json:"ctok"`
	CVer      string `json:"cver"`
	Lang      string `json:"lang"`
	SID       string `json:"sid"`
	Syscode   string `json:"syscode"`
	Auth      string `json:"auth"`
	XSID      string `json:"xsid"`
	Extension []any  `json:"extension"`
}

type commentRequest struct {
	Arg  commentArg  `json:"arg"`
	Head commentHead `json:"head"`
}

type commentEnvelope struct {
	Result *struct {
		Items      []any `json:"items"`
		TotalCount int   `json:"totalCount"`
	} `json:"result"`
}

// Fetcher maps page requests onto the comment collapse-list endpoint.
type Fetcher struct {
	client *resty.Client
	cfg    *config.Config
}

// NewFetcher builds a fetcher for one poi. The headers mimic a browser
// session on the sight page and do not vary across pages.
func NewFetcher(cfg *config.Config, poiID int) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "application/json, text/javascript, */*; q=0.01")
	client.SetHeader("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	client.SetHeader("Origin", "https://you.ctrip.com")
	client.SetHeader("Referer", fmt.Sprintf("https://you.ctrip.com/sight/0/%d.html", poiID))

	return &Fetcher{client: client, cfg: cfg}
}

// buildCommentRequest fills the protocol-required session fields around the
// three values that actually vary: poi, page index, and page size.
func buildCommentRequest(req PageRequest) commentRequest {
	return commentRequest{
		Arg: commentArg{
			ChannelType:  2,
			CollapseType: 0,
			CommentTagID: 0,
			PageIndex:    req.Page,
			PageSize:     req.PageSize,
			PoiID:        req.PoiID,
			SourceType:   3,
			SortType:     1,
			StarType:     0,
		},
		Head: commentHead{
			CID:       "09031025312449459187",
			CTok:      "",
			CVer:      "1.0",
			Lang:      "01",
			SID:       "8888",
			Syscode:   "09",
			Auth:      "",
			XSID:      "",
			Extension: []any{},
		},
	}
}

// FetchPage performs one POST and interprets the transport-level result.
func (f *Fetcher) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildCommentRequest(req)).
		Post(f.cfg.CommentAPIURL)
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, ErrHTTPStatus{Code: resp.StatusCode()}
	}

	var envelope commentEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, ErrDecode{Err: err}
	}
	if envelope.Result == nil {
		return nil, ErrMalformedResponse
	}

	return &PageResult{
		Items:      envelope.Result.Items,
		TotalCount: envelope.Result.TotalCount,
	}, nil
}
