package tutorial

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for tutorials.
type Repository interface {
	Save(ctx context.Context, tutorial Tutorial) (Tutorial, error)
	SaveAll(ctx context.Context, tutorials []Tutorial) ([]Tutorial, error)
	FindAll(ctx context.Context) ([]Tutorial, error)
	FindByID(ctx context.Context, id uint) (*Tutorial, error)
	FindByPublished(ctx context.Context, published bool) ([]Tutorial, error)
	FindByTitleContaining(ctx context.Context, substring string) ([]Tutorial, error)
	ExistsByID(ctx context.Context, id uint) (bool, error)
	Count(ctx context.Context) (int64, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteAll(ctx context.Context) error
}

// GormRepository persists tutorials using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
	// titleContains is a case-sensitive substring predicate with a single placeholder.
	titleContains string
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	predicate, err := titleContainsPredicate(db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	return &GormRepository{db: db, logger: logger, titleContains: predicate}, nil
}

var _ Repository = (*GormRepository)(nil)

// LIKE is case-insensitive for ASCII in SQLite and treats % and _ as wildcards, so the
// match goes through the position functions instead.
func titleContainsPredicate(dialect string) (string, error) {
	switch dialect {
	case "sqlite":
		return "instr(title, ?) > 0", nil
	case "postgres":
		return "strpos(title, ?) > 0", nil
	default:
		return "", eris.Errorf("unsupported dialect for title search: %s", dialect)
	}
}

// Save inserts the tutorial when it has no ID and updates the stored row otherwise.
func (r *GormRepository) Save(ctx context.Context, tutorial Tutorial) (Tutorial, error) {
	if err := r.db.WithContext(ctx).Save(&tutorial).Error; err != nil {
		r.logError(logrus.Fields{"tutorial_id": tutorial.ID}, err, "saving tutorial")
		return Tutorial{}, eris.Wrapf(err, "saving tutorial: %d", tutorial.ID)
	}

	return tutorial, nil
}

// SaveAll saves every tutorial in a single transaction and returns them with IDs populated.
func (r *GormRepository) SaveAll(ctx context.Context, tutorials []Tutorial) ([]Tutorial, error) {
	saved := make([]Tutorial, len(tutorials))
	copy(saved, tutorials)

	if len(saved) == 0 {
		return saved, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range saved {
			if err := tx.Save(&saved[i]).Error; err != nil {
				return eris.Wrapf(err, "saving tutorial at index %d", i)
			}
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"count": len(tutorials)}, err, "saving tutorials")
		return nil, eris.Wrap(err, "saving tutorials")
	}

	return saved, nil
}

// FindAll returns every tutorial ordered by ID.
func (r *GormRepository) FindAll(ctx context.Context) ([]Tutorial, error) {
	var tutorials []Tutorial

	if err := r.db.WithContext(ctx).Order("id ASC").Find(&tutorials).Error; err != nil {
		r.logError(nil, err, "listing tutorials")
		return nil, eris.Wrap(err, "listing tutorials")
	}

	return nonNil(tutorials), nil
}

// FindByID returns the tutorial with the provided ID or nil when not found.
func (r *GormRepository) FindByID(ctx context.Context, id uint) (*Tutorial, error) {
	var tutorial Tutorial

	err := r.db.WithContext(ctx).First(&tutorial, "id = ?", id).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"tutorial_id": id}, err, "fetching tutorial by id")
		return nil, eris.Wrapf(err, "fetching tutorial by id: %d", id)
	}

	return &tutorial, nil
}

// FindByPublished returns the tutorials whose published flag equals the argument.
func (r *GormRepository) FindByPublished(ctx context.Context, published bool) ([]Tutorial, error) {
	var tutorials []Tutorial

	err := r.db.WithContext(ctx).
		Where("published = ?", published).
		Order("id ASC").
		Find(&tutorials).Error
	if err != nil {
		r.logError(logrus.Fields{"published": published}, err, "listing tutorials by published flag")
		return nil, eris.Wrapf(err, "listing tutorials by published flag: %t", published)
	}

	return nonNil(tutorials), nil
}

// FindByTitleContaining returns the tutorials whose title contains substring, compared
// case-sensitively. An empty substring matches every tutorial.
func (r *GormRepository) FindByTitleContaining(ctx context.Context, substring string) ([]Tutorial, error) {
	var tutorials []Tutorial

	err := r.db.WithContext(ctx).
		Where(r.titleContains, substring).
		Order("id ASC").
		Find(&tutorials).Error
	if err != nil {
		r.logError(logrus.Fields{"substring": substring}, err, "listing tutorials by title")
		return nil, eris.Wrapf(err, "listing tutorials by title containing: %s", substring)
	}

	return nonNil(tutorials), nil
}

// ExistsByID reports whether a tutorial with the provided ID is stored.
func (r *GormRepository) ExistsByID(ctx context.Context, id uint) (bool, error) {
	var count int64

	if err := r.db.WithContext(ctx).Model(&Tutorial{}).Where("id = ?", id).Count(&count).Error; err != nil {
		r.logError(logrus.Fields{"tutorial_id": id}, err, "checking tutorial existence")
		return false, eris.Wrapf(err, "checking tutorial existence: %d", id)
	}

	return count > 0, nil
}

// Count returns the total number of stored tutorials.
func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var count int64

	if err := r.db.WithContext(ctx).Model(&Tutorial{}).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting tutorials")
		return 0, eris.Wrap(err, "counting tutorials")
	}

	return count, nil
}

// DeleteByID removes the tutorial with the provided ID. A missing ID is not an error.
func (r *GormRepository) DeleteByID(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Tutorial{}).Error; err != nil {
		r.logError(logrus.Fields{"tutorial_id": id}, err, "deleting tutorial")
		return eris.Wrapf(err, "deleting tutorial: %d", id)
	}

	return nil
}

// DeleteAll removes every tutorial.
func (r *GormRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Tutorial{}).Error
	if err != nil {
		r.logError(nil, err, "deleting all tutorials")
		return eris.Wrap(err, "deleting all tutorials")
	}

	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func nonNil(tutorials []Tutorial) []Tutorial {
	if tutorials == nil {
		return []Tutorial{}
	}
	return tutorials
}
