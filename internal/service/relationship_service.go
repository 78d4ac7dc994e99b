package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// RelationshipService 关系链服务
type RelationshipService interface {
	// Follow 幂等；自己关注自己返回 ErrFollowSelf
	Follow(ctx context.Context, userID, authorID string) error
	// Unfollow 关系不存在时返回 ErrNotFound
	Unfollow(ctx context.Context, userID, authorID string) error
	IsFollowing(ctx context.Context, userID, authorID string) (bool, error)
	Counts(ctx context.Context, userID string) (followers, following int64, err error)
}

type relationshipService struct {
	followRepo repository.FollowRepository
}

func NewRelationshipService(followRepo repository.FollowRepository) RelationshipService {
	return &relationshipService{followRepo: followRepo}
}

func (s *relationshipService) Follow(ctx context.Context, userID, authorID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if userID == authorID {
		return ErrFollowSelf
	}
	created, err := s.followRepo.Create(ctx, userID, authorID)
	if err != nil {
		return err
	}
	if created {
		logger.Info("follow created", zap.String("user", userID), zap.String("author", authorID))
	}
	return nil
}

func (s *relationshipService) Unfollow(ctx context.Context, userID, authorID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if err := s.followRepo.Delete(ctx, userID, authorID); err != nil {
		return notFound(err)
	}
	logger.Info("follow removed", zap.String("user", userID), zap.String("author", authorID))
	return nil
}

func (s *relationshipService) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return s.followRepo.Exists(ctx, userID, authorID)
}

func (s *relationshipService) Counts(ctx context.Context, userID string) (int64, int64, error) {
	followers, err := s.followRepo.CountFollowers(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	following, err := s.followRepo.CountFollowing(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}
