package restore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// kgoLogConsumer is the production LogConsumer: a thin seam over a
// *kgo.Client plus a *kadm.Client. It never subscribes the client to a
// topic pattern or a consumer group — only direct partition assignment via
// AddConsumePartitions/RemoveConsumePartitions, the way
// modules/blockbuilder/blockbuilder.go in the Tempo block-builder consumes
// one changelog partition at a time.
//
// franz-go's direct-assignment API has no position() primitive analogous
// to a classic consumer-group client, so position is tracked locally: it
// is set whenever we seek and advanced past every record the last poll
// returned.
type kgoLogConsumer struct {
	client *kgo.Client
	admin  *kadm.Client

	assigned  map[Partition]struct{}
	positions map[Partition]int64
}

// NewKgoLogConsumer wraps client as a LogConsumer. The caller owns client's
// lifecycle (including Close).
func NewKgoLogConsumer(client *kgo.Client) LogConsumer {
	return &kgoLogConsumer{
		client:    client,
		admin:     kadm.NewClient(client),
		assigned:  make(map[Partition]struct{}),
		positions: make(map[Partition]int64),
	}
}

func wrapTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return err
}

// Subscription always reports empty: this adapter only ever does direct
// partition assignment, never group or pattern subscription.
func (c *kgoLogConsumer) Subscription(_ context.Context) ([]string, error) {
	return nil, nil
}

func (c *kgoLogConsumer) Assign(_ context.Context, partitions []Partition) error {
	if partitions == nil {
		if len(c.assigned) == 0 {
			return nil
		}
		byTopic := make(map[string][]int32)
		for p := range c.assigned {
			byTopic[p.Topic] = append(byTopic[p.Topic], p.Index)
		}
		c.client.RemoveConsumePartitions(byTopic)
		c.assigned = make(map[Partition]struct{})
		return nil
	}

	add := make(map[string]map[int32]kgo.Offset)
	for _, p := range partitions {
		if _, ok := c.assigned[p]; ok {
			continue
		}
		if add[p.Topic] == nil {
			add[p.Topic] = make(map[int32]kgo.Offset)
		}
		add[p.Topic][p.Index] = kgo.NewOffset().AtStart()
		c.assigned[p] = struct{}{}
	}
	if len(add) > 0 {
		c.client.AddConsumePartitions(add)
	}
	return nil
}

func (c *kgoLogConsumer) Assignment(_ context.Context) ([]Partition, error) {
	out := make([]Partition, 0, len(c.assigned))
	for p := range c.assigned {
		out = append(out, p)
	}
	return out, nil
}

// Seek repositions p. AddConsumePartitions only takes effect for a
// partition not already in the assignment, so a partition the reader
// assigned earlier in the same startRestoration pass (see
// reader_initialize.go) must be repositioned with SetOffsets instead, the
// call franz-go documents for moving an already-assigned partition.
func (c *kgoLogConsumer) Seek(_ context.Context, p Partition, offset int64) error {
	if _, ok := c.assigned[p]; ok {
		c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
			p.Topic: {p.Index: kgo.EpochOffset{Epoch: -1, Offset: offset}},
		})
	} else {
		c.client.AddConsumePartitions(map[string]map[int32]kgo.Offset{
			p.Topic: {p.Index: kgo.NewOffset().At(offset)},
		})
		c.assigned[p] = struct{}{}
	}
	c.positions[p] = offset
	return nil
}

func (c *kgoLogConsumer) SeekToBeginning(ctx context.Context, partitions []Partition) error {
	if len(partitions) == 0 {
		return nil
	}

	add := make(map[string]map[int32]kgo.Offset)
	topics := make([]string, 0, len(partitions))
	seen := make(map[string]struct{})
	for _, p := range partitions {
		if add[p.Topic] == nil {
			add[p.Topic] = make(map[int32]kgo.Offset)
		}
		add[p.Topic][p.Index] = kgo.NewOffset().AtStart()
		c.assigned[p] = struct{}{}
		if _, ok := seen[p.Topic]; !ok {
			seen[p.Topic] = struct{}{}
			topics = append(topics, p.Topic)
		}
	}
	c.client.AddConsumePartitions(add)

	starts, err := c.admin.ListStartOffsets(ctx, topics...)
	if err != nil {
		return wrapTimeout("list start offsets", err)
	}
	for _, p := range partitions {
		listed, ok := starts.Lookup(p.Topic, p.Index)
		if !ok {
			c.positions[p] = 0
			continue
		}
		if listed.Err != nil {
			return wrapTimeout("list start offsets", listed.Err)
		}
		c.positions[p] = listed.Offset
	}
	return nil
}

func (c *kgoLogConsumer) Position(_ context.Context, p Partition) (int64, error) {
	pos, ok := c.positions[p]
	if !ok {
		return 0, fmt.Errorf("restore: no known position for %s", p)
	}
	return pos, nil
}

func (c *kgoLogConsumer) Poll(ctx context.Context, timeout time.Duration) (map[Partition][]Record, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := c.client.PollFetches(pctx)
	if err := fetches.Err(); err != nil {
		return nil, wrapTimeout("poll", err)
	}

	out := make(map[Partition][]Record)
	iter := fetches.RecordIter()
	for !iter.Done() {
		rec := iter.Next()
		p := Partition{Topic: rec.Topic, Index: rec.Partition}
		out[p] = append(out[p], Record{
			Partition: p,
			Offset:    rec.Offset,
			Key:       rec.Key,
			Value:     rec.Value,
		})
		c.positions[p] = rec.Offset + 1
	}
	return out, nil
}

func (c *kgoLogConsumer) EndOffsets(ctx context.Context, partitions []Partition) (map[Partition]int64, error) {
	topics := make([]string, 0, len(partitions))
	seen := make(map[string]struct{})
	for _, p := range partitions {
		if _, ok := seen[p.Topic]; !ok {
			seen[p.Topic] = struct{}{}
			topics = append(topics, p.Topic)
		}
	}

	ends, err := c.admin.ListEndOffsets(ctx, topics...)
	if err != nil {
		return nil, wrapTimeout("list end offsets", err)
	}

	out := make(map[Partition]int64, len(partitions))
	for _, p := range partitions {
		listed, ok := ends.Lookup(p.Topic, p.Index)
		if !ok {
			continue
		}
		if listed.Err != nil {
			return nil, wrapTimeout("list end offsets", listed.Err)
		}
		out[p] = listed.Offset
	}
	return out, nil
}

func (c *kgoLogConsumer) ListTopics(ctx context.Context) (map[string]TopicMetadata, error) {
	details, err := c.admin.ListTopics(ctx)
	if err != nil {
		return nil, wrapTimeout("list topics", err)
	}

	out := make(map[string]TopicMetadata, len(details))
	for topic, detail := range details {
		if detail.Err != nil {
			continue
		}
		out[topic] = TopicMetadata{Partitions: detail.Partitions.Numbers()}
	}
	return out, nil
}
