package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/repository"
)

// LocationRepository reads the address reference tables.
type LocationRepository interface {
	ListCountries(ctx context.Context) ([]repository.Country, error)
	ListProvinces(ctx context.Context) ([]repository.Province, error)
	FindProvince(ctx context.Context, id int) (*repository.Province, error)
	ListDistricts(ctx context.Context, provinceID int) ([]repository.District, error)
	FindDistrict(ctx context.Context, id int) (*repository.District, error)
	ListVillages(ctx context.Context, districtID int) ([]repository.Village, error)
}

// ProvinceDistricts is a province with its districts ordered by name.
type ProvinceDistricts struct {
	Province  *repository.Province  `json:"province"`
	Districts []repository.District `json:"districts"`
}

// DistrictVillages is a district with its villages ordered by name.
type DistrictVillages struct {
	District *repository.District `json:"district"`
	Villages []repository.Village `json:"villages"`
}

const locationTTL = 24 * time.Hour

// LocationUseCase serves reference data through the cache. A nil cache reads
// the database on every call.
type LocationUseCase struct {
	repo   LocationRepository
	cache  Cache
	logger *zap.Logger
}

func NewLocationUseCase(repo LocationRepository, cache Cache, logger *zap.Logger) *LocationUseCase {
	return &LocationUseCase{repo: repo, cache: cache, logger: logger.Named("location_usecase")}
}

func (uc *LocationUseCase) Countries(ctx context.Context) ([]repository.Country, error) {
	return readThrough(ctx, uc, "location:countries", uc.repo.ListCountries)
}

func (uc *LocationUseCase) Provinces(ctx context.Context) ([]repository.Province, error) {
	return readThrough(ctx, uc, "location:provinces", uc.repo.ListProvinces)
}

func (uc *LocationUseCase) ProvinceWithDistricts(ctx context.Context, id int) (*ProvinceDistricts, error) {
	key := "location:province:" + strconv.Itoa(id)
	return readThrough(ctx, uc, key, func(ctx context.Context) (*ProvinceDistricts, error) {
		province, err := uc.repo.FindProvince(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Province not found")
		}
		if err != nil {
			return nil, err
		}
		districts, err := uc.repo.ListDistricts(ctx, id)
		if err != nil {
			return nil, err
		}
		return &ProvinceDistricts{Province: province, Districts: districts}, nil
	})
}

func (uc *LocationUseCase) DistrictWithVillages(ctx context.Context, id int) (*DistrictVillages, error) {
	key := "location:district:" + strconv.Itoa(id)
	return readThrough(ctx, uc, key, func(ctx context.Context) (*DistrictVillages, error) {
		district, err := uc.repo.FindDistrict(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("District not found")
		}
		if err != nil {
			return nil, err
		}
		villages, err := uc.repo.ListVillages(ctx, id)
		if err != nil {
			return nil, err
		}
		return &DistrictVillages{District: district, Villages: villages}, nil
	})
}

// readThrough serves key from the cache, loading and storing it on a miss.
// Cache failures are logged and never fail the request.
func readThrough[T any](ctx context.Context, uc *LocationUseCase, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if uc.cache != nil {
		raw, err := uc.cache.Get(ctx, key)
		switch {
		case err == nil:
			var value T
			if err := json.Unmarshal([]byte(raw), &value); err == nil {
				return value, nil
			}
			uc.logger.Warn("failed to decode cached locations", zap.String("key", key))
		case !errors.Is(err, redis.Nil):
			uc.logger.Warn("failed to read location cache", zap.String("key", key), zap.Error(err))
		}
	}

	value, err := load(ctx)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return zero, err
		}
		return zero, apperror.Internal("Internal server error", err)
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(value); err == nil {
			if err := uc.cache.Set(ctx, key, string(raw), locationTTL); err != nil {
				uc.logger.Warn("failed to cache locations", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return value, nil
}
