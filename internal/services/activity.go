package services

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var ErrContentNotFound = errors.New("content not found")

// ActivitySource is the engine's read-only view of platform records.
type ActivitySource interface {
	ActivitySnapshot(ctx context.Context, userID uuid.UUID, now time.Time) (models.ActivitySnapshot, error)
	UserRole(ctx context.Context, userID uuid.UUID) (string, error)
	ContentAuthor(ctx context.Context, contentType, contentID string) (uuid.UUID, error)
}

// GormActivitySource reads activity straight from the platform tables.
// Content authors never change, so lookups are memoized for a while.
type GormActivitySource struct {
	db      *gorm.DB
	authors *expirable.LRU[string, uuid.UUID]
}

var _ ActivitySource = (*GormActivitySource)(nil)

func NewGormActivitySource(db *gorm.DB) *GormActivitySource {
	return &GormActivitySource{
		db:      db,
		authors: expirable.NewLRU[string, uuid.UUID](10_000, nil, 30*time.Minute),
	}
}

func (s *GormActivitySource) ActivitySnapshot(ctx context.Context, userID uuid.UUID, now time.Time) (models.ActivitySnapshot, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "created_at").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ActivitySnapshot{}, validationErr("unknown user %s", userID)
		}
		return models.ActivitySnapshot{}, storageErr("load user", err)
	}

	var snap models.ActivitySnapshot
	snap.AccountAgeDays = max(now.Sub(user.CreatedAt).Hours()/24, 0)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, model any, column string) {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(model).Where(column+" = ?", userID).Count(dst).Error
		})
	}
	count(&snap.Posts, &models.Post{}, "user_id")
	count(&snap.Comments, &models.Comment{}, "user_id")
	count(&snap.Reviews, &models.Review{}, "user_id")
	count(&snap.Follows, &models.Follow{}, "follower_id")
	count(&snap.Upvotes, &models.Upvote{}, "user_id")
	count(&snap.Saves, &models.Save{}, "user_id")
	if err := g.Wait(); err != nil {
		return models.ActivitySnapshot{}, storageErr("count activity", err)
	}
	return snap, nil
}

func (s *GormActivitySource) UserRole(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "role").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", validationErr("unknown user %s", userID)
		}
		return "", storageErr("load user role", err)
	}
	if user.Role == "" {
		return models.RoleUser, nil
	}
	return user.Role, nil
}

func (s *GormActivitySource) ContentAuthor(ctx context.Context, contentType, contentID string) (uuid.UUID, error) {
	key := contentType + "/" + contentID
	if id, ok := s.authors.Get(key); ok {
		return id, nil
	}

	var model any
	switch contentType {
	case config.ContentPost:
		model = &models.Post{}
	case config.ContentQuestion:
		model = &models.Question{}
	case config.ContentComment:
		model = &models.Comment{}
	case config.ContentReview:
		model = &models.Review{}
	default:
		return uuid.Nil, validationErr("unknown content type %q", contentType)
	}
	id, err := uuid.Parse(contentID)
	if err != nil {
		return uuid.Nil, ErrContentNotFound
	}

	var row struct{ UserID uuid.UUID }
	res := s.db.WithContext(ctx).Model(model).Select("user_id").Where("id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return uuid.Nil, storageErr("load content author", res.Error)
	}
	if res.RowsAffected == 0 {
		return uuid.Nil, ErrContentNotFound
	}
	s.authors.Add(key, row.UserID)
	return row.UserID, nil
}
