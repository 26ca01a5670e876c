package service

import (
	"time"

	"github.com/flowstate/pulse/internal/adapters/mq/queue"
	"github.com/flowstate/pulse/internal/adapters/repository"
	"github.com/flowstate/pulse/internal/adapters/snapshot"
	"github.com/flowstate/pulse/internal/domain/history"
	"github.com/flowstate/pulse/internal/domain/model"
)

func taskForEvent(ev model.Event) queue.Task {
	return queue.Task{Event: &ev}
}

func taskForSession(rec model.SessionRecord) queue.Task {
	return queue.Task{Session: &rec}
}

// toRows flattens in-memory aggregates into the persisted row shape.
func toRows(aggs []repository.Aggregate, now time.Time) []snapshot.AggregateRow {
	rows := make([]snapshot.AggregateRow, 0, len(aggs))
	for _, agg := range aggs {
		rows = append(rows, snapshot.AggregateRow{
			UserID:            agg.UserID,
			TotalSessions:     agg.Stats.TotalSessions,
			FocusSum:          agg.Stats.FocusSum,
			QualitySum:        agg.Stats.QualitySum,
			TotalDuration:     agg.Stats.TotalDuration,
			TotalDistractions: agg.Stats.TotalDistractions,
			MaxFocus:          agg.Stats.MaxFocus,
			MinFocus:          agg.Stats.MinFocus,
			LastFlowScore:     agg.LastFlowScore,
			UpdatedAt:         now,
		})
	}
	return rows
}

// fromRows rebuilds aggregates from persisted rows for a startup restore.
func fromRows(rows []snapshot.AggregateRow) []repository.Aggregate {
	aggs := make([]repository.Aggregate, 0, len(rows))
	for _, r := range rows {
		aggs = append(aggs, repository.Aggregate{
			UserID: r.UserID,
			Stats: history.CumulativeStats{
				TotalSessions:     r.TotalSessions,
				FocusSum:          r.FocusSum,
				QualitySum:        r.QualitySum,
				TotalDuration:     r.TotalDuration,
				TotalDistractions: r.TotalDistractions,
				MaxFocus:          r.MaxFocus,
				MinFocus:          r.MinFocus,
			},
			LastFlowScore: r.LastFlowScore,
		})
	}
	return aggs
}
