package service

import (
	"context"
	"testing"
	"time"

	"loanflow_backend/internal/deals/repository"
	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestBuildTimelineMergesNewestFirst(t *testing.T) {
	actor := uuid.New()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	subject := "Missing payslip"

	store := &fakeDealStore{
		deal: draftDeal(),
		activity: []repository.Activity{
			{
				ID:        uuid.New(),
				ActorID:   actor,
				EventType: repository.ActivityStatusChange,
				Metadata:  map[string]any{"fromStatus": "draft", "toStatus": "submitted"},
				CreatedAt: base,
			},
			{
				ID:          uuid.New(),
				ActorID:     actor,
				EventType:   repository.ActivityNote,
				Description: "client confirmed income",
				CreatedAt:   base.Add(2 * time.Hour),
			},
		},
		comms: []repository.Communication{
			{
				ID:        uuid.New(),
				ActorID:   actor,
				CommType:  repository.CommEmail,
				Direction: repository.DirectionOutbound,
				Subject:   &subject,
				Body:      "Please send your latest payslip.",
				CreatedAt: base.Add(time.Hour),
			},
		},
		names: map[uuid.UUID]string{actor: "Eva Jansen"},
	}
	svc := newTestService(store, &fakeBus{}, &fakeEvaluator{})

	timeline, err := svc.BuildTimeline(context.Background(), store.deal.ID)
	if err != nil {
		t.Fatalf("BuildTimeline returned error: %v", err)
	}
	if len(timeline) != 3 {
		t.Fatalf("expected 3 events, got %d", len(timeline))
	}

	if timeline[0].Type != repository.ActivityNote {
		t.Fatalf("newest event should be the note, got %s", timeline[0].Type)
	}
	if timeline[1].Source != SourceCommunication {
		t.Fatalf("middle event should be the email, got %s", timeline[1].Source)
	}
	if timeline[2].Title != "Draft → Submitted" {
		t.Fatalf("status change title = %q, want %q", timeline[2].Title, "Draft → Submitted")
	}

	if timeline[1].Title != "Outbound email: Missing payslip" {
		t.Fatalf("communication title = %q", timeline[1].Title)
	}
	for _, e := range timeline {
		if e.ActorName != "Eva Jansen" {
			t.Fatalf("actor name not resolved on %s: %q", e.Type, e.ActorName)
		}
	}
}

func TestBuildTimelineUnknownActor(t *testing.T) {
	store := &fakeDealStore{
		deal: draftDeal(),
		activity: []repository.Activity{
			{ID: uuid.New(), ActorID: uuid.New(), EventType: repository.ActivityNote, CreatedAt: time.Now()},
		},
	}
	svc := newTestService(store, &fakeBus{}, &fakeEvaluator{})

	timeline, err := svc.BuildTimeline(context.Background(), store.deal.ID)
	if err != nil {
		t.Fatalf("BuildTimeline returned error: %v", err)
	}
	if timeline[0].ActorName != "Unknown" {
		t.Fatalf("unresolved actor should render as Unknown, got %q", timeline[0].ActorName)
	}
}

func TestBuildTimelineEqualTimestampsAreDeterministic(t *testing.T) {
	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	idA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	idB := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	store := &fakeDealStore{
		deal: draftDeal(),
		activity: []repository.Activity{
			{ID: idB, EventType: repository.ActivityNote, CreatedAt: ts},
			{ID: idA, EventType: repository.ActivityNote, CreatedAt: ts},
		},
	}
	svc := newTestService(store, &fakeBus{}, &fakeEvaluator{})

	timeline, err := svc.BuildTimeline(context.Background(), store.deal.ID)
	if err != nil {
		t.Fatalf("BuildTimeline returned error: %v", err)
	}
	if timeline[0].ID != idA || timeline[1].ID != idB {
		t.Fatalf("equal timestamps should order by id: %s, %s", timeline[0].ID, timeline[1].ID)
	}
}

func TestBuildTimelineMissingDeal(t *testing.T) {
	store := &fakeDealStore{getErr: apperr.NotFound("deal not found")}
	svc := newTestService(store, &fakeBus{}, &fakeEvaluator{})

	if _, err := svc.BuildTimeline(context.Background(), uuid.New()); err == nil {
		t.Fatal("missing deal should fail the timeline request")
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"draft":       "Draft",
		"in_progress": "In Progress",
		"funded":      "Funded",
	}
	for in, want := range tests {
		if got := statusLabel(in); got != want {
			t.Fatalf("statusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
