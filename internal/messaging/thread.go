package messaging

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
)

// BuildThread nests descendants under root. Replies are ordered by creation
// time with ties broken by id. Descendants not reachable from root are
// ignored.
func BuildThread(root models.Message, descendants []models.Message, maxDepth int) (*models.ThreadNode, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxThreadDepth
	}
	children := make(map[uuid.UUID][]models.Message)
	for _, m := range descendants {
		if m.ParentID == nil {
			continue
		}
		children[*m.ParentID] = append(children[*m.ParentID], m)
	}
	for _, list := range children {
		sort.Slice(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.Before(list[j].CreatedAt)
			}
			return list[i].ID.String() < list[j].ID.String()
		})
	}

	visited := map[uuid.UUID]bool{}
	var build func(m models.Message, depth int) (*models.ThreadNode, error)
	build = func(m models.Message, depth int) (*models.ThreadNode, error) {
		if depth > maxDepth {
			return nil, ErrThreadTooDeep
		}
		if visited[m.ID] {
			return nil, ErrThreadCycle
		}
		visited[m.ID] = true

		node := &models.ThreadNode{Message: m, Replies: []*models.ThreadNode{}}
		for _, child := range children[m.ID] {
			sub, err := build(child, depth+1)
			if err != nil {
				return nil, err
			}
			node.Replies = append(node.Replies, sub)
		}
		return node, nil
	}
	return build(root, 1)
}

// GetThread materializes the reply tree rooted at messageID.
func (s *Service) GetThread(ctx context.Context, actor access.Actor, messageID uuid.UUID) (*models.ThreadNode, error) {
	ctx, span := tracer.Start(ctx, "messaging.GetThread")
	defer span.End()

	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	root, err := s.visibleMessage(ctx, s.store, actor, messageID)
	if err != nil {
		return nil, err
	}
	// One level past the bound is fetched so an over-deep thread is reported
	// rather than silently cut.
	descendants, err := s.store.Messages().ListDescendants(ctx, root.ID, s.maxThreadDepth)
	if err != nil {
		return nil, err
	}
	return BuildThread(root, descendants, s.maxThreadDepth)
}
