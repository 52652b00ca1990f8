// Package twitter exposes the fixed operation surface the agent calls:
// write operations (post, delete, like, retweet), read operations (search,
// trends, tweet lookups, thread context), web search, and diagnostics.
//
// Every operation resolves to a [registry.Result]; nothing here returns a Go
// error. Write operations get one extra recovery attempt after a cache
// invalidation; read operations fail fast with diagnostics attached.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magpie-ai/magpie/internal/health"
	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/registry"
	"github.com/magpie-ai/magpie/internal/search"
)

// Facade is the stable tool surface over the registry, guard, and search
// client. Its method set never changes with provider availability; an
// operation whose tool is missing reports that in its result instead.
type Facade struct {
	registry *registry.Registry
	guard    *registry.Guard
	search   *search.Client
	tracker  *health.Tracker
	usage    *observe.UsageStats

	userID string

	// retryPause separates a write operation's two attempts so a transient
	// provider hiccup has a moment to clear. Overridable in tests.
	retryPause time.Duration
}

// New creates the facade. userID is injected into every write operation's
// arguments so the provider acts on the managed account.
func New(reg *registry.Registry, guard *registry.Guard, sc *search.Client, tracker *health.Tracker, usage *observe.UsageStats, userID string) *Facade {
	return &Facade{
		registry:   reg,
		guard:      guard,
		search:     sc,
		tracker:    tracker,
		usage:      usage,
		userID:     userID,
		retryPause: time.Second,
	}
}

// PostTweet publishes text as a new tweet, optionally attaching media inputs.
func (f *Facade) PostTweet(ctx context.Context, text string, mediaInputs ...string) registry.Result {
	if mediaInputs == nil {
		mediaInputs = []string{}
	}
	return f.writeOp(ctx, "post_tweet", map[string]any{
		"text":         text,
		"media_inputs": mediaInputs,
	})
}

// DeleteTweet removes a tweet by ID.
func (f *Facade) DeleteTweet(ctx context.Context, tweetID string) registry.Result {
	return f.writeOp(ctx, "delete_tweet", map[string]any{"tweet_id": tweetID})
}

// LikeTweet likes a tweet by ID.
func (f *Facade) LikeTweet(ctx context.Context, tweetID string) registry.Result {
	return f.writeOp(ctx, "like_tweet", map[string]any{"tweet_id": tweetID})
}

// Retweet retweets a tweet by ID.
func (f *Facade) Retweet(ctx context.Context, tweetID string) registry.Result {
	return f.writeOp(ctx, "retweet", map[string]any{"tweet_id": tweetID})
}

// AdvancedSearch runs a Twitter advanced-search query.
func (f *Facade) AdvancedSearch(ctx context.Context, query string) registry.Result {
	return f.readOp(ctx, "advanced_search_twitter", map[string]any{"llm_text": query})
}

// GetTrends fetches trending topics for a WOEID location. A non-positive
// woeid falls back to 1 (worldwide).
func (f *Facade) GetTrends(ctx context.Context, woeid int) registry.Result {
	if woeid <= 0 {
		woeid = 1
	}
	return f.readOp(ctx, "get_trends", map[string]any{"woeid": woeid})
}

// GetTweetsByIDs fetches tweets in bulk by their IDs.
func (f *Facade) GetTweetsByIDs(ctx context.Context, ids []string) registry.Result {
	return f.readOp(ctx, "get_tweets_by_IDs", map[string]any{"tweetIds": ids})
}

// GetTweetReplies fetches replies to a tweet.
func (f *Facade) GetTweetReplies(ctx context.Context, tweetID string) registry.Result {
	return f.readOp(ctx, "get_tweet_replies", map[string]any{"tweetId": tweetID})
}

// GetTweetQuotations fetches quote tweets of a tweet.
func (f *Facade) GetTweetQuotations(ctx context.Context, tweetID string) registry.Result {
	return f.readOp(ctx, "get_tweet_quotations", map[string]any{"tweetId": tweetID})
}

// GetThreadContext fetches the surrounding thread of a tweet.
func (f *Facade) GetThreadContext(ctx context.Context, tweetID string) registry.Result {
	return f.readOp(ctx, "get_tweet_thread_context", map[string]any{"tweetId": tweetID})
}

// WebSearch runs a general web-search query through Tavily, guarded the same
// way provider tools are.
func (f *Facade) WebSearch(ctx context.Context, query string) registry.Result {
	return f.guard.Do(ctx, "web_search", func(ctx context.Context) (string, error) {
		resp, err := f.search.Search(ctx, query)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return "", fmt.Errorf("encode search response: %w", err)
		}
		return string(out), nil
	})
}

// writeOp executes a state-changing tool with one recovery retry: if the
// first attempt fails (tool missing or invocation non-success), the registry
// cache is invalidated, a brief pause elapses, and the operation runs once
// more against a freshly refreshed registry.
func (f *Facade) writeOp(ctx context.Context, tool string, args map[string]any) registry.Result {
	if f.userID != "" {
		args["user_id"] = f.userID
	}

	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		tools := f.registry.Tools(ctx)
		if d, ok := tools[tool]; ok {
			res := f.guard.Invoke(ctx, d, args)
			if res.Status == registry.StatusSuccess || attempt == attempts {
				if res.Status != registry.StatusSuccess {
					res.DebugInfo = f.registry.Diagnostics()
				}
				return res
			}
			observe.Logger(ctx).Warn("write operation failed, retrying after cache invalidation",
				"tool", tool, "status", res.Status)
		} else if attempt == attempts {
			break
		} else {
			observe.Logger(ctx).Warn("tool unavailable, retrying after cache invalidation", "tool", tool)
		}

		f.registry.Invalidate()
		if err := sleepCtx(ctx, f.retryPause); err != nil {
			break
		}
	}

	return registry.Result{
		Status:    registry.StatusFailed,
		Error:     fmt.Sprintf("%s service unavailable after retries", tool),
		DebugInfo: f.registry.Diagnostics(),
	}
}

// readOp executes a read-only tool. Reads fail fast: a missing tool or a
// failed invocation returns immediately with diagnostics attached, leaving
// retry decisions to the caller.
func (f *Facade) readOp(ctx context.Context, tool string, args map[string]any) registry.Result {
	tools := f.registry.Tools(ctx)
	d, ok := tools[tool]
	if !ok {
		return registry.Result{
			Status:    registry.StatusFailed,
			Error:     fmt.Sprintf("%s service unavailable", tool),
			DebugInfo: f.registry.Diagnostics(),
		}
	}
	res := f.guard.Invoke(ctx, d, args)
	if res.Status != registry.StatusSuccess {
		res.DebugInfo = f.registry.Diagnostics()
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
