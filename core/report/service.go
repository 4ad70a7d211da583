// Package report submits meal feedback and emergency reports, queuing them
// offline like attendance does.
package report

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sekolahmbg/mbg-client/api"
	"github.com/sekolahmbg/mbg-client/core/offline"
)

// Queue type discriminators.
const (
	FeedbackQueueType  = "feedback"
	EmergencyQueueType = "emergency_report"
)

type (
	// Feedback is a meal quality report from a school.
	Feedback struct {
		SchoolID string `json:"school_id" validate:"required"`
		Date     string `json:"date" validate:"required,meal_date"`
		Rating   int    `json:"rating" validate:"required,min=1,max=5"`
		Comment  string `json:"comment,omitempty"`
	}

	// Emergency is an incident report (food poisoning, delivery failure).
	// These must never be silently lost, hence the queue fallback.
	Emergency struct {
		SchoolID    string `json:"school_id" validate:"required"`
		Category    string `json:"category" validate:"required"`
		Description string `json:"description" validate:"required"`
	}

	Service struct {
		client   *api.Client
		engine   *offline.Engine
		validate *validator.Validate
	}
)

func NewService(client *api.Client, engine *offline.Engine, validate *validator.Validate) *Service {
	return &Service{client: client, engine: engine, validate: validate}
}

// SubmitFeedback sends feedback now or queues it.
func (svc *Service) SubmitFeedback(ctx context.Context, fb Feedback) (queued bool, err error) {
	if err := svc.validate.Struct(fb); err != nil {
		return false, err
	}
	return svc.engine.SubmitOrQueue(ctx, FeedbackQueueType, fb, func(ctx context.Context) error {
		_, err := svc.client.Do(ctx, "/feedback", &api.Options{Method: http.MethodPost, Body: fb})
		return err
	})
}

// SubmitEmergency sends an emergency report now or queues it.
func (svc *Service) SubmitEmergency(ctx context.Context, em Emergency) (queued bool, err error) {
	if err := svc.validate.Struct(em); err != nil {
		return false, err
	}
	return svc.engine.SubmitOrQueue(ctx, EmergencyQueueType, em, func(ctx context.Context) error {
		_, err := svc.client.Do(ctx, "/emergency", &api.Options{Method: http.MethodPost, Body: em})
		return err
	})
}
