package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/twitter"
)

// defaultSystemPrompt steers the model when no prompt is configured.
const defaultSystemPrompt = `You are magpie, an autonomous social-media agent managing a Twitter account.
You can post, delete, like, and retweet; search Twitter and the web; inspect
trends, replies, quotes, and threads; and check your own connection status and
system health. Tool results are JSON envelopes with a "status" field: when a
tool reports "failed", "timeout", or "error", explain the failure using the
attached debug_info instead of retrying endlessly.`

// Agent runs the tool-calling conversation loop.
type Agent struct {
	llm          Completer
	tools        *twitter.Facade
	systemPrompt string
	maxTurns     int
}

// New creates an Agent. An empty systemPrompt selects the built-in one; a
// non-positive maxTurns defaults to 8.
func New(llm Completer, tools *twitter.Facade, systemPrompt string, maxTurns int) *Agent {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if maxTurns <= 0 {
		maxTurns = 8
	}
	return &Agent{
		llm:          llm,
		tools:        tools,
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
	}
}

// Respond processes one user message: it loops completion → tool execution →
// completion until the model answers without tool calls or the turn budget is
// exhausted.
func (a *Agent) Respond(ctx context.Context, userMessage string) (string, error) {
	log := observe.Logger(ctx)
	catalog := Catalog()

	messages := []Message{{Role: "user", Content: userMessage}}

	for turn := 0; turn < a.maxTurns; turn++ {
		resp, err := a.llm.Complete(ctx, CompletionRequest{
			SystemPrompt: a.systemPrompt,
			Messages:     messages,
			Tools:        catalog,
		})
		if err != nil {
			return "", fmt.Errorf("agent: turn %d: %w", turn+1, err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			log.Info("executing tool call", "tool", tc.Name, "call_id", tc.ID)
			content := a.dispatch(ctx, tc)
			messages = append(messages, Message{
				Role:       "tool",
				Name:       tc.Name,
				ToolCallID: tc.ID,
				Content:    content,
			})
		}
	}

	return "", fmt.Errorf("agent: no final answer after %d turns", a.maxTurns)
}

// dispatch executes one requested tool call and returns its result as a JSON
// string for the model. Dispatch itself never fails: malformed arguments and
// unknown tools become error envelopes the model can read.
func (a *Agent) dispatch(ctx context.Context, tc ToolCall) string {
	args := map[string]any{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return errorEnvelope(fmt.Sprintf("invalid arguments for %s: %v", tc.Name, err))
		}
	}

	switch tc.Name {
	case "post_tweet":
		return marshal(a.tools.PostTweet(ctx, stringArg(args, "text")))
	case "delete_tweet":
		return marshal(a.tools.DeleteTweet(ctx, stringArg(args, "tweet_id")))
	case "like_tweet":
		return marshal(a.tools.LikeTweet(ctx, stringArg(args, "tweet_id")))
	case "retweet":
		return marshal(a.tools.Retweet(ctx, stringArg(args, "tweet_id")))
	case "advanced_search_twitter":
		return marshal(a.tools.AdvancedSearch(ctx, stringArg(args, "query")))
	case "get_trends":
		return marshal(a.tools.GetTrends(ctx, intArg(args, "woeid")))
	case "get_tweets_by_ids":
		return marshal(a.tools.GetTweetsByIDs(ctx, stringSliceArg(args, "tweet_ids")))
	case "get_tweet_replies":
		return marshal(a.tools.GetTweetReplies(ctx, stringArg(args, "tweet_id")))
	case "get_tweet_quotations":
		return marshal(a.tools.GetTweetQuotations(ctx, stringArg(args, "tweet_id")))
	case "get_tweet_thread_context":
		return marshal(a.tools.GetThreadContext(ctx, stringArg(args, "tweet_id")))
	case "web_search":
		return marshal(a.tools.WebSearch(ctx, stringArg(args, "query")))
	case "check_twitter_connection_status":
		return marshal(a.tools.Status(ctx))
	case "get_system_health":
		return marshal(a.tools.Health())
	default:
		return errorEnvelope(fmt.Sprintf("unknown tool %q", tc.Name))
	}
}

func marshal(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return errorEnvelope(fmt.Sprintf("encode result: %v", err))
	}
	return string(out)
}

func errorEnvelope(msg string) string {
	out, _ := json.Marshal(map[string]string{"status": "error", "error": msg})
	return string(out)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
