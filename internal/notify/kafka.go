package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mhutchins/arbmon/internal/arb"
)

// KafkaSink publishes opportunities to a topic for downstream consumers.
type KafkaSink struct {
	writer *kafkago.Writer
}

// opportunityEnvelope is the wire format written to the topic.
type opportunityEnvelope struct {
	Version        int          `json:"version"`
	PairKey        string       `json:"pair_key"`
	SourceID       string       `json:"source_id"`
	TargetID       string       `json:"target_id"`
	SourceText     string       `json:"source_text"`
	TargetText     string       `json:"target_text"`
	Similarity     float64      `json:"similarity"`
	Strategy       arb.Strategy `json:"strategy"`
	SourceLegPrice float64      `json:"source_leg_price"`
	TargetLegPrice float64      `json:"target_leg_price"`
	GrossMargin    float64      `json:"gross_margin"`
	NetMargin      float64      `json:"net_margin"`
	TotalCost      float64      `json:"total_cost"`
	Action         string       `json:"action"`
	DetectedAt     time.Time    `json:"detected_at"`
}

const envelopeVersion = 1

func NewKafkaSink(writer *kafkago.Writer) (*KafkaSink, error) {
	if writer == nil {
		return nil, fmt.Errorf("kafka sink: writer is required")
	}
	return &KafkaSink{writer: writer}, nil
}

func (s *KafkaSink) Send(ctx context.Context, opp *arb.Opportunity) error {
	env := opportunityEnvelope{
		Version:        envelopeVersion,
		PairKey:        opp.Pair.Key(),
		SourceID:       opp.Pair.SourceID,
		TargetID:       opp.Pair.TargetID,
		SourceText:     opp.Pair.SourceText,
		TargetText:     opp.Pair.TargetText,
		Similarity:     opp.Pair.Similarity,
		Strategy:       opp.Strategy,
		SourceLegPrice: opp.SourceLegPrice,
		TargetLegPrice: opp.TargetLegPrice,
		GrossMargin:    opp.GrossMargin,
		NetMargin:      opp.NetMargin,
		TotalCost:      opp.TotalCost,
		Action:         opp.Action,
		DetectedAt:     time.Now().UTC(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal opportunity %s: %w", env.PairKey, err)
	}
	key := fmt.Sprintf("%s-%d", env.PairKey, env.DetectedAt.UnixNano())
	return s.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(key), Value: payload})
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
