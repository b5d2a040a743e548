package interfaces

import "context"

// PageFetcher retrieves the raw quote page for one ticker
type PageFetcher interface {
	Fetch(ctx context.Context, ticker string) ([]byte, error)
}
