package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator counts prompt tokens before a request is sent
type TokenEstimator interface {
	Count(text string) int
}

// HeuristicEstimator assumes four characters per token
type HeuristicEstimator struct{}

func (HeuristicEstimator) Count(text string) int {
	return (len(text) + 3) / 4
}

// TiktokenEstimator counts with the cl100k_base encoding. Loading the encoding
// can fail offline; the heuristic is used then.
type TiktokenEstimator struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

func (e *TiktokenEstimator) Count(text string) int {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.encoding = enc
		}
	})
	if e.encoding == nil {
		return HeuristicEstimator{}.Count(text)
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// NewTokenEstimator returns the estimator named in configuration
func NewTokenEstimator(name string) TokenEstimator {
	if name == "tiktoken" {
		return &TiktokenEstimator{}
	}
	return HeuristicEstimator{}
}
