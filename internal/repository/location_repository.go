package repository

import (
	"context"

	"gorm.io/gorm"
)

// LocationRepository reads the country and address reference tables.
type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) ListCountries(ctx context.Context) ([]Country, error) {
	countries := []Country{}
	err := r.db.WithContext(ctx).Order("country_name").Find(&countries).Error
	return countries, translate(err)
}

func (r *LocationRepository) ListProvinces(ctx context.Context) ([]Province, error) {
	provinces := []Province{}
	err := r.db.WithContext(ctx).Order("pr_name").Find(&provinces).Error
	return provinces, translate(err)
}

func (r *LocationRepository) FindProvince(ctx context.Context, id int) (*Province, error) {
	var province Province
	if err := r.db.WithContext(ctx).First(&province, "pr_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &province, nil
}

func (r *LocationRepository) ListDistricts(ctx context.Context, provinceID int) ([]District, error) {
	districts := []District{}
	err := r.db.WithContext(ctx).Where("pr_id = ?", provinceID).Order("dr_name").Find(&districts).Error
	return districts, translate(err)
}

func (r *LocationRepository) FindDistrict(ctx context.Context, id int) (*District, error) {
	var district District
	if err := r.db.WithContext(ctx).First(&district, "dr_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &district, nil
}

func (r *LocationRepository) ListVillages(ctx context.Context, districtID int) ([]Village, error) {
	villages := []Village{}
	err := r.db.WithContext(ctx).Where("dr_id = ?", districtID).Order("vill_name").Find(&villages).Error
	return villages, translate(err)
}
