package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"seatwatch"
	"seatwatch/id"
	"seatwatch/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:seatwatch_jobs"`

	ID           string          `bun:"id,pk"`
	OwnerID      string          `bun:"owner_id,notnull"`
	DepartureCd  string          `bun:"departure_cd,notnull"`
	ArrivalCd    string          `bun:"arrival_cd,notnull"`
	TargetMonth  string          `bun:"target_month,notnull"`
	TargetDate   string          `bun:"target_date,notnull"`
	TargetTimes  []string        `bun:"target_times,type:jsonb"`
	Deadline     time.Time       `bun:"deadline,notnull"`
	Attempts     int             `bun:"attempts,notnull,default:1"`
	Status       string          `bun:"status,notnull,default:'waiting'"`
	RetryCount   int             `bun:"retry_count,notnull,default:0"`
	Result       json.RawMessage `bun:"result,type:jsonb"`
	Error        string          `bun:"error"`
	CancelReason string          `bun:"cancel_reason"`
	CompletedAt  *time.Time      `bun:"completed_at"`
	CreatedAt    time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:           j.ID.String(),
		OwnerID:      j.OwnerID,
		DepartureCd:  j.DepartureCd,
		ArrivalCd:    j.ArrivalCd,
		TargetMonth:  j.TargetMonth,
		TargetDate:   j.TargetDate,
		TargetTimes:  j.TargetTimes,
		Deadline:     j.Deadline,
		Attempts:     j.Attempts,
		Status:       string(j.Status),
		RetryCount:   j.RetryCount,
		Result:       j.Result,
		Error:        j.Error,
		CancelReason: string(j.CancelReason),
		CompletedAt:  j.CompletedAt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("seatwatch/bun: parse job id %q: %w", m.ID, err)
	}

	return &job.Job{
		Entity: seatwatch.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           parsedID,
		OwnerID:      m.OwnerID,
		DepartureCd:  m.DepartureCd,
		ArrivalCd:    m.ArrivalCd,
		TargetMonth:  m.TargetMonth,
		TargetDate:   m.TargetDate,
		TargetTimes:  m.TargetTimes,
		Deadline:     m.Deadline,
		Attempts:     m.Attempts,
		Status:       job.Status(m.Status),
		RetryCount:   m.RetryCount,
		Result:       m.Result,
		Error:        m.Error,
		CancelReason: job.CancelReason(m.CancelReason),
		CompletedAt:  m.CompletedAt,
	}, nil
}
