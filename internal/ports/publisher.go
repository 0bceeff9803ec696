package ports

import "context"

type Publisher interface {
	PublishRaw(ctx context.Context, topicARN string, payload []byte) error
}
