package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"loanflow_backend/internal/deals/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Timeline event sources.
const (
	SourceActivity      = "activity"
	SourceCommunication = "communication"
)

// TimelineEvent is one entry in the merged deal timeline.
type TimelineEvent struct {
	ID          uuid.UUID      `json:"id"`
	Source      string         `json:"source"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	ActorID     uuid.UUID      `json:"actorId"`
	ActorName   string         `json:"actorName"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// BuildTimeline merges the deal's activity log and communications into one
// newest-first list. Both sources are fetched concurrently; either failing
// fails the whole request rather than returning a partial timeline.
func (s *Service) BuildTimeline(ctx context.Context, dealID uuid.UUID) ([]TimelineEvent, error) {
	if _, err := s.store.GetByID(ctx, dealID); err != nil {
		return nil, err
	}

	var (
		activities []repository.Activity
		comms      []repository.Communication
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activities, err = s.store.ListActivity(gctx, dealID)
		return err
	})
	g.Go(func() error {
		var err error
		comms, err = s.store.ListCommunications(gctx, dealID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names, err := s.store.GetProfileNames(ctx, collectActorIDs(activities, comms))
	if err != nil {
		s.log.Error("failed to resolve timeline actor names", "error", err, "dealId", dealID)
		names = map[uuid.UUID]string{}
	}

	timeline := make([]TimelineEvent, 0, len(activities)+len(comms))
	for _, a := range activities {
		timeline = append(timeline, activityEvent(a, names))
	}
	for _, c := range comms {
		timeline = append(timeline, communicationEvent(c, names))
	}

	// Newest first, with the id as a tiebreaker so equal timestamps render
	// the same way on every request.
	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].Timestamp.Equal(timeline[j].Timestamp) {
			return timeline[i].ID.String() < timeline[j].ID.String()
		}
		return timeline[i].Timestamp.After(timeline[j].Timestamp)
	})

	return timeline, nil
}

func collectActorIDs(activities []repository.Activity, comms []repository.Communication) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(activities)+len(comms))
	ids := make([]uuid.UUID, 0, len(seen))
	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, a := range activities {
		add(a.ActorID)
	}
	for _, c := range comms {
		add(c.ActorID)
	}
	return ids
}

func activityEvent(a repository.Activity, names map[uuid.UUID]string) TimelineEvent {
	e := TimelineEvent{
		ID:          a.ID,
		Source:      SourceActivity,
		Type:        a.EventType,
		Description: a.Description,
		ActorID:     a.ActorID,
		ActorName:   actorName(names, a.ActorID),
		Timestamp:   a.CreatedAt,
		Metadata:    a.Metadata,
	}

	switch a.EventType {
	case repository.ActivityStatusChange:
		e.Title = statusChangeTitle(a.Metadata)
	case repository.ActivityNote:
		e.Title = "Note added"
	case repository.ActivityDocumentUpload:
		e.Title = "Document uploaded"
	case repository.ActivityTaskCreated:
		e.Title = "Task created"
	case repository.ActivityBrokerAssigned:
		e.Title = "Broker assigned"
	case repository.ActivityIdleWarning:
		e.Title = "Idle deal warning"
	default:
		e.Title = statusLabel(a.EventType)
	}

	return e
}

func communicationEvent(c repository.Communication, names map[uuid.UUID]string) TimelineEvent {
	title := statusLabel(c.CommType)
	if c.Direction == repository.DirectionInbound {
		title = "Inbound " + strings.ToLower(title)
	} else {
		title = "Outbound " + strings.ToLower(title)
	}
	if c.Subject != nil && *c.Subject != "" {
		title += ": " + *c.Subject
	}

	return TimelineEvent{
		ID:          c.ID,
		Source:      SourceCommunication,
		Type:        c.CommType,
		Title:       title,
		Description: c.Body,
		ActorID:     c.ActorID,
		ActorName:   actorName(names, c.ActorID),
		Timestamp:   c.CreatedAt,
		Metadata: map[string]any{
			"direction": c.Direction,
		},
	}
}

// statusChangeTitle renders "Draft → Submitted" from the activity metadata,
// falling back to a generic title when the metadata is missing.
func statusChangeTitle(metadata map[string]any) string {
	from, _ := metadata["fromStatus"].(string)
	to, _ := metadata["toStatus"].(string)
	if from == "" || to == "" {
		return "Status changed"
	}
	return statusLabel(from) + " → " + statusLabel(to)
}

func actorName(names map[uuid.UUID]string, id uuid.UUID) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}

// statusLabel renders a snake_case value for humans ("in_progress" ->
// "In Progress").
func statusLabel(value string) string {
	words := strings.Split(value, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
