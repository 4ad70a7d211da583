// Package attendance records meal attendance with graceful degradation:
// when the record call cannot be made or fails, the submission is queued
// for a later sync instead of being lost.
package attendance

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sekolahmbg/mbg-client/api"
	"github.com/sekolahmbg/mbg-client/core/offline"
)

// QueueType discriminates attendance items in the offline queue.
const QueueType = "attendance"

type Service struct {
	client   *api.Client
	engine   *offline.Engine
	validate *validator.Validate
}

func NewService(client *api.Client, engine *offline.Engine, validate *validator.Validate) *Service {
	return &Service{client: client, engine: engine, validate: validate}
}

// Record submits attendance now when possible, otherwise queues it.
// queued reports which path was taken.
func (svc *Service) Record(ctx context.Context, rec Record) (queued bool, err error) {
	if err := svc.validate.Struct(rec); err != nil {
		return false, err
	}
	for _, entry := range rec.Entries {
		if !entry.Status.Valid() {
			return false, fmt.Errorf("unknown attendance status %q", entry.Status)
		}
	}

	return svc.engine.SubmitOrQueue(ctx, QueueType, rec, func(ctx context.Context) error {
		_, err := svc.client.Do(ctx, "/attendance", &api.Options{
			Method: http.MethodPost,
			Body:   rec,
		})
		return err
	})
}

// Students fetches the roster for a school.
func (svc *Service) Students(ctx context.Context, schoolID string) ([]Student, error) {
	var students []Student
	err := svc.client.DoInto(ctx, "/schools/"+schoolID+"/students", nil, &students)
	return students, err
}

// Summary fetches the attendance aggregate for a school and date.
func (svc *Service) Summary(ctx context.Context, schoolID, date string) (*Summary, error) {
	var sum Summary
	path := fmt.Sprintf("/attendance/summary?school_id=%s&date=%s", schoolID, date)
	if err := svc.client.DoInto(ctx, path, nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}
