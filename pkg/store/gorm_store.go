package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"inkwell/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&SampleModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Add inserts a new sample record.
func (g *GormStore) Add(sample domain.Sample) error {
	model, err := modelFromSample(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if err := g.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Update applies mutate to an existing record inside a transaction.
func (g *GormStore) Update(id string, mutate func(*domain.Sample)) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		var model SampleModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load sample: %w", err)
		}
		sample := sampleFromModel(model)
		mutate(&sample)
		sample.ID = id
		updated, err := modelFromSample(sample)
		if err != nil {
			return fmt.Errorf("encode sample: %w", err)
		}
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("save sample: %w", err)
		}
		return nil
	})
}

// Delete removes a record.
func (g *GormStore) Delete(id string) error {
	res := g.db.Delete(&SampleModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete sample: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a record by id.
func (g *GormStore) Get(id string) (domain.Sample, bool, error) {
	var model SampleModel
	if err := g.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Sample{}, false, nil
		}
		return domain.Sample{}, false, fmt.Errorf("load sample: %w", err)
	}
	return sampleFromModel(model), true, nil
}

// List returns all records ordered by upload time, oldest first.
func (g *GormStore) List() ([]domain.Sample, error) {
	var models []SampleModel
	if err := g.db.Order("upload_time asc, id asc").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	samples := make([]domain.Sample, 0, len(models))
	for _, model := range models {
		samples = append(samples, sampleFromModel(model))
	}
	return samples, nil
}

// FindByHash returns the record with the given content hash, if any.
func (g *GormStore) FindByHash(hash string) (domain.Sample, bool, error) {
	var model SampleModel
	if err := g.db.First(&model, "file_hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Sample{}, false, nil
		}
		return domain.Sample{}, false, fmt.Errorf("find sample by hash: %w", err)
	}
	return sampleFromModel(model), true, nil
}

// Count returns the number of records.
func (g *GormStore) Count() (int, error) {
	var count int64
	if err := g.db.Model(&SampleModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return int(count), nil
}
