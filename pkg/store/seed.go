package store

import (
	"fmt"

	"promptstudio/pkg/logger"
	"promptstudio/pkg/models"
	"promptstudio/pkg/utils"
)

// SeedFunction, SeedCategory and SeedAuthor mirror the startup seed entries
// from configuration without importing the config package.
type SeedFunction struct {
	ID   string
	Name string
	Icon string
}

type SeedCategory struct {
	FunctionID string
	Name       string
}

type SeedAuthor struct {
	ID          string
	DisplayName string
}

// SeedData is the fixed content the catalog is populated with at startup.
type SeedData struct {
	Functions  []SeedFunction
	Categories []SeedCategory
	Authors    []SeedAuthor
}

// Seed inserts the given functions, categories and authors if they are not
// already present. Safe to run on every startup; existing records are left
// untouched, so restarts against a disk-backed catalog do not duplicate or
// rewrite anything.
func (c *Catalog) Seed(data SeedData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range data.Functions {
		id := f.ID
		if id == "" {
			id = utils.NormalizeKey(f.Name)
		}
		if id == "" {
			return fmt.Errorf("%w: seed function needs an id or name", ErrInvalidInput)
		}
		if _, ok, err := c.get(fnIDPrefix + id); err != nil {
			return err
		} else if ok {
			continue
		}
		fn := models.Function{ID: id, Name: f.Name, Icon: f.Icon, Active: true}
		primary := fnPrefix + utils.OrderKey(c.now())
		if err := c.putRecord(primary, fnIDPrefix+id, fn); err != nil {
			return err
		}
		logger.Info("function_seeded", "id", id)
	}
	for _, cat := range data.Categories {
		if _, err := c.getOrCreateCategoryLocked(cat.FunctionID, cat.Name); err != nil {
			return fmt.Errorf("seed category %q: %w", cat.Name, err)
		}
	}
	for _, a := range data.Authors {
		if err := c.seedAuthorLocked(a); err != nil {
			return fmt.Errorf("seed author %q: %w", a.DisplayName, err)
		}
	}
	return nil
}

// seedAuthorLocked behaves like getOrCreateAuthorLocked but honours an
// explicit id when the seed entry carries one.
func (c *Catalog) seedAuthorLocked(a SeedAuthor) error {
	key := utils.NormalizeKey(a.DisplayName)
	if key == "" {
		return fmt.Errorf("%w: seed author needs a display name", ErrInvalidInput)
	}
	if _, ok, err := c.get(authorKeyPrefix + key); err != nil {
		return err
	} else if ok {
		return nil
	}
	id := a.ID
	if id == "" {
		id = "auth-" + key
	}
	rec := models.Author{ID: id, DisplayName: a.DisplayName, NormalizedKey: key, Active: true}
	primary := authorPrefix + utils.OrderKey(c.now())
	if err := c.putRecord(primary, authorIDPrefix+id, rec); err != nil {
		return err
	}
	if err := c.set(authorKeyPrefix+key, []byte(primary)); err != nil {
		return err
	}
	logger.Info("author_seeded", "id", id)
	authorsCreated.Inc()
	return nil
}
