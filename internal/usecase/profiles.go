package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/storage"
	"github.com/example/gigwork/internal/upload"
)

// ProfileRepository defines the persistence operations for KYC profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *repository.Profile) error
	Find(ctx context.Context, id string) (*repository.Profile, error)
	FindByUser(ctx context.Context, userID string) ([]repository.Profile, error)
}

// Work types accepted on a profile.
const (
	WorkFullTime = "full-time"
	WorkPartTime = "part-time"
)

// Multipart file fields of a profile submission.
const (
	FilePortfolio    = "portfolio_path"
	FileBank         = "bank_img"
	FileCardFront    = "card_front_img"
	FilePassport     = "passport_img"
	profileFileCount = 4
)

var profileBuckets = map[string]string{
	FilePortfolio: storage.BucketPortfolio,
	FileBank:      storage.BucketBanks,
	FileCardFront: storage.BucketPersonalID,
	FilePassport:  storage.BucketPassport,
}

// ProfileSubmission is the form of a new profile. Files are keyed by field name.
type ProfileSubmission struct {
	UserID   string
	WorkType string
	Skill    string
	Website  string

	BankName    string
	BankAccount string

	Card     repository.PersonalCard
	Passport repository.Passport

	Files map[string]*upload.File
}

// ProfileUseCase creates KYC profiles and stores their documents.
type ProfileUseCase struct {
	repo        ProfileRepository
	store       storage.ObjectStore
	defaultPath string
	logger      *zap.Logger
	newID       func() string
}

// NewProfileUseCase wires the profile flow. defaultPath replaces documents whose upload failed.
func NewProfileUseCase(repo ProfileRepository, store storage.ObjectStore, defaultPath string, newID func() string, logger *zap.Logger) *ProfileUseCase {
	return &ProfileUseCase{
		repo:        repo,
		store:       store,
		defaultPath: defaultPath,
		logger:      logger.Named("profile_usecase"),
		newID:       newID,
	}
}

// Create uploads the documents and writes the profile. A personal card or a
// passport row is only created when its number or image was submitted.
func (uc *ProfileUseCase) Create(ctx context.Context, in ProfileSubmission) (*repository.Profile, error) {
	workType := strings.ToLower(strings.TrimSpace(in.WorkType))
	if workType != WorkFullTime && workType != WorkPartTime {
		return nil, apperror.Validation("Invalid work_type. Must be one of: full-time, part-time")
	}
	if in.UserID == "" {
		return nil, apperror.Validation("user_id is required")
	}

	paths := uc.uploadDocuments(ctx, in.Files)

	profile := &repository.Profile{
		ID:            uc.newID(),
		UserID:        in.UserID,
		WorkType:      workType,
		Skill:         in.Skill,
		Website:       in.Website,
		PortfolioPath: paths[FilePortfolio],
		Bank: &repository.BankInfo{
			ID:          uc.newID(),
			BankName:    in.BankName,
			BankAccount: in.BankAccount,
			BankImage:   paths[FileBank],
		},
	}
	if in.Card.Number != "" || in.Files[FileCardFront] != nil {
		card := in.Card
		card.ID = uc.newID()
		card.FrontImage = paths[FileCardFront]
		profile.PersonalCard = &card
	}
	if in.Passport.Number != "" || in.Files[FilePassport] != nil {
		passport := in.Passport
		passport.ID = uc.newID()
		passport.Image = paths[FilePassport]
		profile.Passport = &passport
	}

	if err := uc.repo.Create(ctx, profile); err != nil {
		return nil, apperror.Internal("Internal server error", err)
	}
	uc.logger.Info("profile created",
		zap.String("profile_id", profile.ID),
		zap.String("user_id", profile.UserID),
		zap.Bool("personal_card", profile.PersonalCard != nil),
		zap.Bool("passport", profile.Passport != nil),
	)
	return profile, nil
}

// uploadDocuments stores the submitted files concurrently. Failed uploads map
// to the default path.
func (uc *ProfileUseCase) uploadDocuments(ctx context.Context, files map[string]*upload.File) map[string]string {
	paths := make(map[string]string, profileFileCount)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for field, bucket := range profileBuckets {
		file := files[field]
		if file == nil {
			continue
		}
		field, bucket := field, bucket
		g.Go(func() error {
			name, err := uc.store.Upload(gctx, bucket, storage.Object{
				OriginalName: file.OriginalName,
				ContentType:  file.ContentType,
				Data:         file.Data,
			})
			if err != nil {
				uc.logger.Warn("document upload failed, using default path",
					zap.String("field", field), zap.String("bucket", bucket), zap.Error(err))
				name = uc.defaultPath
			}
			mu.Lock()
			paths[field] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return paths
}

func (uc *ProfileUseCase) Get(ctx context.Context, id string) (*repository.Profile, error) {
	profile, err := uc.repo.Find(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Profile not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load profile", err)
	}
	return profile, nil
}

func (uc *ProfileUseCase) ListByUser(ctx context.Context, userID string) ([]repository.Profile, error) {
	profiles, err := uc.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("Failed to list profiles", err)
	}
	return profiles, nil
}
