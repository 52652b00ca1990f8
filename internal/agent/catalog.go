package agent

// Catalog is the fixed tool surface presented to the model. It never changes
// with provider availability: an operation whose backing tool is unreachable
// still appears here and reports its unavailability in the result, so the
// model can explain the failure instead of hallucinating around a missing
// tool.
func Catalog() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "post_tweet",
			Description: "Publish a new tweet from the managed account.",
			Parameters: objectSchema(map[string]any{
				"text": stringProp("The tweet text to publish."),
			}, "text"),
		},
		{
			Name:        "delete_tweet",
			Description: "Delete a tweet from the managed account by its ID.",
			Parameters: objectSchema(map[string]any{
				"tweet_id": stringProp("The ID of the tweet to delete."),
			}, "tweet_id"),
		},
		{
			Name:        "like_tweet",
			Description: "Like a tweet by its ID.",
			Parameters: objectSchema(map[string]any{
				"tweet_id": stringProp("The ID of the tweet to like."),
			}, "tweet_id"),
		},
		{
			Name:        "retweet",
			Description: "Retweet a tweet by its ID.",
			Parameters: objectSchema(map[string]any{
				"tweet_id": stringProp("The ID of the tweet to retweet."),
			}, "tweet_id"),
		},
		{
			Name:        "advanced_search_twitter",
			Description: "Search Twitter with an advanced query (operators like from:, since:, min_faves: are supported).",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("The advanced search query."),
			}, "query"),
		},
		{
			Name:        "get_trends",
			Description: "Fetch trending topics for a location. WOEID 1 is worldwide.",
			Parameters: objectSchema(map[string]any{
				"woeid": map[string]any{
					"type":        "integer",
					"description": "Yahoo! Where On Earth ID of the location. Defaults to 1 (worldwide).",
				},
			}),
		},
		{
			Name:        "get_tweets_by_ids",
			Description: "Fetch multiple tweets by their IDs in one call.",
			Parameters: objectSchema(map[string]any{
				"tweet_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "The tweet IDs to fetch.",
				},
			}, "tweet_ids"),
		},
		{
			Name:        "get_tweet_replies",
			Description: "Fetch replies to a tweet by its ID.",
			Parameters: objectSchema(map[string]any{
				"tweet_id": stringProp("The ID of the tweet whose replies to fetch."),
			}, "tweet_id"),
		},
		{
			Name:        "get_tweet_quotations",
			Description: "Fetch quote tweets of a tweet by its ID.",
			Parameters: objectSchema(map[string]any{
				"tweet_id": stringProp("The ID of the quoted tweet."),
			}, "tweet_id"),
		},
		{
			Name:        "get_tweet_thread_context",
			Description: "Fetch the surrounding thread of a tweet by its ID.",
			Parameters: objectSchema(map[string]any{
				"tweet_id": stringProp("The ID of a tweet in the thread."),
			}, "tweet_id"),
		},
		{
			Name:        "web_search",
			Description: "Search the web for current information on any topic.",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("The search query."),
			}, "query"),
		},
		{
			Name:        "check_twitter_connection_status",
			Description: "Check connectivity to the Twitter tool providers and list the currently available tools.",
			Parameters:  objectSchema(map[string]any{}),
		},
		{
			Name:        "get_system_health",
			Description: "Report aggregate system health: per-tool usage statistics and provider connection scores.",
			Parameters:  objectSchema(map[string]any{}),
		},
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}
