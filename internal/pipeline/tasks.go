// Package pipeline runs the asynchronous lead enrichment pipeline over the
// durable task queue.
package pipeline

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadEnrichment = "leads.enrich"

const TaskScoreRecalculation = "scoring.recalculate"

type LeadEnrichmentPayload struct {
	LeadID string `json:"leadId"`
	JobID  string `json:"jobId"`
}

type ScoreRecalculationPayload struct {
	Reason string `json:"reason,omitempty"`
}

func NewLeadEnrichmentTask(payload LeadEnrichmentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadEnrichment, data), nil
}

func ParseLeadEnrichmentPayload(task *asynq.Task) (LeadEnrichmentPayload, error) {
	var payload LeadEnrichmentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadEnrichmentPayload{}, err
	}
	return payload, nil
}

func NewScoreRecalculationTask(payload ScoreRecalculationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRecalculation, data), nil
}

func ParseScoreRecalculationPayload(task *asynq.Task) (ScoreRecalculationPayload, error) {
	var payload ScoreRecalculationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreRecalculationPayload{}, err
	}
	return payload, nil
}
