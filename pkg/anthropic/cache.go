package anthropic

// BuildCachedSystemBlocks wraps a static system prompt in a single block with
// a 1-hour cache breakpoint, so repeated extractions in one session reuse the
// cached prefix.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
