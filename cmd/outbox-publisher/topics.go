package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type topicSource interface {
	Topic(name string) topicPublisher
}

type pubsubPublishers interface {
	Publisher(name string) *gcppubsub.Publisher
}

// clientTopics adapts the shared Pub/Sub client, which caches one ordered
// publisher per topic.
type clientTopics struct {
	client pubsubPublishers
}

func (c clientTopics) Topic(name string) topicPublisher {
	raw := c.client.Publisher(name)
	if raw == nil {
		return nil
	}
	return gcpTopic{pub: raw}
}

type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{res: t.pub.Publish(ctx, msg)}
}

func (t gcpTopic) ResumePublish(orderingKey string) {
	t.pub.ResumePublish(orderingKey)
}

type gcpResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
