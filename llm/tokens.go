package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// HeuristicEncoding disables tiktoken and counts four characters per token
const HeuristicEncoding = "heuristic"

// perMessageOverhead approximates the role and separator tokens chat formats add
const perMessageOverhead = 4

// TokenCounter estimates token counts for providers that report no usage
type TokenCounter struct {
	once     sync.Once
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter using the named tiktoken encoding
// ("cl100k_base" when empty). The encoding is loaded on first use; if it
// cannot be loaded the counter falls back to four characters per token.
func NewTokenCounter(encoding string) *TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TokenCounter{encoding: encoding}
}

func (c *TokenCounter) load() {
	c.once.Do(func() {
		if c.encoding == HeuristicEncoding {
			return
		}
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			return
		}
		c.enc = enc
	})
}

// CountText returns the token count of text
func (c *TokenCounter) CountText(text string) int {
	if text == "" {
		return 0
	}
	if c != nil {
		c.load()
		if c.enc != nil {
			return len(c.enc.Encode(text, nil, nil))
		}
	}
	return heuristicCount(text)
}

// CountMessages returns the prompt token count of msgs
func (c *TokenCounter) CountMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + c.CountText(m.Content)
		for _, tc := range m.ToolCalls {
			total += c.CountText(tc.Name) + c.CountText(tc.Arguments)
		}
	}
	return total
}

func heuristicCount(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
