package profiles

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inkstonehq/inkstone/backend/internal/auth"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("profiles: invalid identity")

// ServiceConfig describes the dependencies for identity and profile management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages canonical user identifiers and the per-user profile row.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("profiles: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// ResolveCanonicalUserID returns the canonical user id for verified Google
// claims, creating the identity mapping on first sight and refreshing the
// stored email, display name, avatar and last-seen stamp afterwards.
func (s *Service) ResolveCanonicalUserID(claims auth.GoogleClaims) (string, error) {
	const provider = "google"
	subject := normalize(claims.Subject)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if canonical, ok := cached.(string); ok {
			return canonical, nil
		}
	}

	var identity Identity
	err := s.db.
		Where("provider = ? AND subject = ?", provider, subject).
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(claims.Email),
			DisplayName: normalize(claims.Name),
			AvatarURL:   normalize(claims.Picture),
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if email := normalize(claims.Email); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if name := normalize(claims.Name); name != "" && name != identity.DisplayName {
			updates["user_display_name"] = name
		}
		if avatar := normalize(claims.Picture); avatar != "" && avatar != identity.AvatarURL {
			updates["user_avatar_url"] = avatar
		}
		_ = s.db.Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).
			Error
	}

	s.cache.Store(cacheKey, identity.UserID)
	return identity.UserID, nil
}

// Get returns the user's profile, materializing the default row on first read.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if normalize(userID) == "" {
		return Profile{}, ErrInvalidIdentity
	}

	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = Profile{UserID: userID, AIExtractionEnabled: true}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return Profile{}, err
		}
		return profile, nil
	}
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateInput carries the editable profile fields.
type UpdateInput struct {
	FullName            string
	Bio                 string
	AIExtractionEnabled bool
}

// Update replaces the editable profile fields and returns the stored row.
func (s *Service) Update(ctx context.Context, userID string, input UpdateInput) (Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	profile.FullName = normalize(input.FullName)
	profile.Bio = normalize(input.Bio)
	profile.AIExtractionEnabled = input.AIExtractionEnabled
	if err := s.db.WithContext(ctx).Save(&profile).Error; err != nil {
		return Profile{}, err
	}
	return profile, nil
}
