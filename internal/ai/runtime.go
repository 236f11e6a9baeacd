package ai

import "context"

// Runtime is the minimal surface a text-generation backend implements.
// *Client satisfies it; tests substitute fakes.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

var _ Runtime = (*Client)(nil)
