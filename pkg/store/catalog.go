package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"promptstudio/pkg/logger"
	"promptstudio/pkg/models"
	"promptstudio/pkg/utils"
)

// Key namespaces. Primary keys carry a sortable timestamp+sequence segment so
// iteration yields insertion order; id keys map an opaque id to the primary
// key it was stored under.
const (
	fnPrefix        = "function:"
	fnIDPrefix      = "function_id:"
	catPrefix       = "category:"
	catIDPrefix     = "category_id:"
	authorPrefix    = "author:"
	authorIDPrefix  = "author_id:"
	authorKeyPrefix = "author_key:"
	subPrefix       = "submission:"
	subIDPrefix     = "submission_id:"
	promptPrefix    = "prompt:"
	promptIDPrefix  = "prompt_id:"
	ratingPrefix    = "rating:"
	bmPrefix        = "bookmark:"
	bmIDPrefix      = "bookmark_id:"
)

// Catalog is the content store: functions, categories, authors, submissions,
// published prompts, ratings and bookmarks, all backed by a single Pebble
// keyspace. Mutations are serialized by one mutex; read-modify-write cycles
// (rating aggregates, status transitions) rely on that.
type Catalog struct {
	mu    sync.Mutex
	db    *pebble.DB
	path  string
	now   func() time.Time
	newID func() string
}

// Options configures Open. Zero values select the defaults used in
// production: an in-memory filesystem, wall-clock time and random ids.
// Tests inject Now and NewID for deterministic records.
type Options struct {
	// Path is the on-disk database directory. Empty keeps the whole
	// catalog in memory, discarded on close.
	Path  string
	Now   func() time.Time
	NewID func() string
}

// Open opens (or creates) the catalog database.
func Open(opts Options) (*Catalog, error) {
	popts := &pebble.Options{}
	path := opts.Path
	if path == "" {
		popts.FS = vfs.NewMem()
		path = "catalog"
		logger.Info("opening_catalog", "mode", "memory")
	} else {
		logger.Info("opening_catalog", "mode", "disk", "path", path)
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		logger.Error("catalog_open_failed", "path", path, "error", err.Error())
		return nil, err
	}
	c := &Catalog{db: db, path: opts.Path, now: opts.Now, newID: opts.NewID}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = utils.GenID
	}
	if opts.Path != "" {
		registerDiskGauge(opts.Path)
	}
	return c, nil
}

// Close closes the underlying database. With no Path configured this also
// discards all data.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return err
	}
	c.db = nil
	logger.Info("catalog_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (c *Catalog) Ready() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db != nil
}

// --- low-level helpers (callers hold c.mu) ---

func (c *Catalog) get(key string) ([]byte, bool, error) {
	if c.db == nil {
		return nil, false, fmt.Errorf("catalog not opened; call store.Open first")
	}
	v, closer, err := c.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, true, nil
}

func (c *Catalog) set(key string, v []byte) error {
	if c.db == nil {
		return fmt.Errorf("catalog not opened; call store.Open first")
	}
	return c.db.Set([]byte(key), v, pebble.Sync)
}

func (c *Catalog) del(key string) error {
	if c.db == nil {
		return fmt.Errorf("catalog not opened; call store.Open first")
	}
	return c.db.Delete([]byte(key), pebble.Sync)
}

// scan visits every key under prefix in key order and calls fn with the key
// and value bytes.
func (c *Catalog) scan(prefix string, fn func(key string, val []byte) error) error {
	if c.db == nil {
		return fmt.Errorf("catalog not opened; call store.Open first")
	}
	p := []byte(prefix)
	iter, err := c.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		if err := fn(string(iter.Key()), append([]byte(nil), iter.Value()...)); err != nil {
			return err
		}
	}
	return nil
}

// byID resolves an id-index key to the record stored at its primary key.
func (c *Catalog) byID(idxKey string, out any) (primary string, found bool, err error) {
	pk, ok, err := c.get(idxKey)
	if err != nil || !ok {
		return "", false, err
	}
	v, ok, err := c.get(string(pk))
	if err != nil || !ok {
		return "", false, err
	}
	if err := json.Unmarshal(v, out); err != nil {
		return "", false, fmt.Errorf("corrupt record at %s: %w", pk, err)
	}
	return string(pk), true, nil
}

func (c *Catalog) putRecord(primary, idxKey string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := c.set(primary, data); err != nil {
		return err
	}
	if idxKey != "" {
		if err := c.set(idxKey, []byte(primary)); err != nil {
			return err
		}
	}
	return nil
}

// --- functions ---

// ListFunctions returns functions in seed/creation order. When activeOnly is
// set, disabled entries are skipped.
func (c *Catalog) ListFunctions(activeOnly bool) ([]models.Function, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Function
	err := c.scan(fnPrefix, func(_ string, v []byte) error {
		var f models.Function
		if err := json.Unmarshal(v, &f); err != nil {
			return nil
		}
		if activeOnly && !f.Active {
			return nil
		}
		out = append(out, f)
		return nil
	})
	return out, err
}

// GetFunction returns the function with the given id.
func (c *Catalog) GetFunction(id string) (models.Function, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getFunctionLocked(id)
}

func (c *Catalog) getFunctionLocked(id string) (models.Function, error) {
	var f models.Function
	_, ok, err := c.byID(fnIDPrefix+id, &f)
	if err != nil {
		return models.Function{}, err
	}
	if !ok {
		return models.Function{}, fmt.Errorf("%w: function %s", ErrNotFound, id)
	}
	return f, nil
}

// --- categories ---

// ListCategories returns the categories of one function in creation order.
func (c *Catalog) ListCategories(functionID string, activeOnly bool) ([]models.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.getFunctionLocked(functionID); err != nil {
		return nil, err
	}
	var out []models.Category
	err := c.scan(catPrefix+functionID+":", func(_ string, v []byte) error {
		var cat models.Category
		if err := json.Unmarshal(v, &cat); err != nil {
			return nil
		}
		if activeOnly && !cat.Active {
			return nil
		}
		out = append(out, cat)
		return nil
	})
	return out, err
}

// GetCategory returns a category by id regardless of the function it belongs
// to. Category ids are derived from names, so the same id may exist under
// several functions; the first match in key order wins.
func (c *Catalog) GetCategory(id string) (models.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var found *models.Category
	err := c.scan(catPrefix, func(_ string, v []byte) error {
		if found != nil {
			return nil
		}
		var cat models.Category
		if err := json.Unmarshal(v, &cat); err != nil {
			return nil
		}
		if cat.ID == id {
			cp := cat
			found = &cp
		}
		return nil
	})
	if err != nil {
		return models.Category{}, err
	}
	if found == nil {
		return models.Category{}, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	return *found, nil
}

// GetOrCreateCategory returns the category named name under functionID,
// creating it when absent. Names differing only in case, spacing or
// punctuation map to the same category; the display name of the first
// creation is kept.
func (c *Catalog) GetOrCreateCategory(functionID, name string) (models.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateCategoryLocked(functionID, name)
}

func (c *Catalog) getOrCreateCategoryLocked(functionID, name string) (models.Category, error) {
	key := utils.NormalizeKey(name)
	if key == "" {
		return models.Category{}, fmt.Errorf("%w: category name required", ErrInvalidInput)
	}
	if _, err := c.getFunctionLocked(functionID); err != nil {
		return models.Category{}, err
	}
	id := "cat-" + key
	idxKey := catIDPrefix + functionID + ":" + id
	var existing models.Category
	if _, ok, err := c.byID(idxKey, &existing); err != nil {
		return models.Category{}, err
	} else if ok {
		return existing, nil
	}
	cat := models.Category{ID: id, FunctionID: functionID, Name: name, Active: true}
	primary := catPrefix + functionID + ":" + utils.OrderKey(c.now())
	if err := c.putRecord(primary, idxKey, cat); err != nil {
		return models.Category{}, err
	}
	logger.Info("category_created", "id", id, "function", functionID)
	categoriesCreated.Inc()
	return cat, nil
}

// --- authors ---

// ListAuthors returns authors in creation order.
func (c *Catalog) ListAuthors(activeOnly bool) ([]models.Author, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Author
	err := c.scan(authorPrefix, func(_ string, v []byte) error {
		var a models.Author
		if err := json.Unmarshal(v, &a); err != nil {
			return nil
		}
		if activeOnly && !a.Active {
			return nil
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

// GetAuthor returns the author with the given id.
func (c *Catalog) GetAuthor(id string) (models.Author, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var a models.Author
	_, ok, err := c.byID(authorIDPrefix+id, &a)
	if err != nil {
		return models.Author{}, err
	}
	if !ok {
		return models.Author{}, fmt.Errorf("%w: author %s", ErrNotFound, id)
	}
	return a, nil
}

// GetOrCreateAuthor returns the author whose normalized key matches
// displayName, creating one when absent. The display name recorded at
// creation is never rewritten by later spelling variants.
func (c *Catalog) GetOrCreateAuthor(displayName string) (models.Author, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateAuthorLocked(displayName)
}

func (c *Catalog) getOrCreateAuthorLocked(displayName string) (models.Author, error) {
	key := utils.NormalizeKey(displayName)
	if key == "" {
		return models.Author{}, fmt.Errorf("%w: author name required", ErrInvalidInput)
	}
	var existing models.Author
	if _, ok, err := c.byID(authorKeyPrefix+key, &existing); err != nil {
		return models.Author{}, err
	} else if ok {
		return existing, nil
	}
	a := models.Author{ID: "auth-" + key, DisplayName: displayName, NormalizedKey: key, Active: true}
	primary := authorPrefix + utils.OrderKey(c.now())
	if err := c.putRecord(primary, authorIDPrefix+a.ID, a); err != nil {
		return models.Author{}, err
	}
	if err := c.set(authorKeyPrefix+key, []byte(primary)); err != nil {
		return models.Author{}, err
	}
	logger.Info("author_created", "id", a.ID)
	authorsCreated.Inc()
	return a, nil
}

// --- submissions ---

// CreateSubmission stores a new pending submission. The caller provides the
// content fields; id, status and timestamps are assigned here. The referenced
// function and category must exist.
func (c *Catalog) CreateSubmission(in models.Submission) (models.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.getFunctionLocked(in.FunctionID); err != nil {
		return models.Submission{}, fmt.Errorf("%w: unknown function_id %q", ErrInvalidInput, in.FunctionID)
	}
	var cat models.Category
	if _, ok, err := c.byID(catIDPrefix+in.FunctionID+":"+in.CategoryID, &cat); err != nil {
		return models.Submission{}, err
	} else if !ok {
		return models.Submission{}, fmt.Errorf("%w: unknown category_id %q", ErrInvalidInput, in.CategoryID)
	}
	sub := in
	sub.ID = c.newID()
	sub.Status = models.SubmissionStatusPending
	sub.CreatedTS = c.now().UTC().UnixNano()
	sub.CategoryName = cat.Name
	sub.ReviewComment = ""
	sub.PublishedPromptID = ""
	if sub.CreatedBy == "" {
		sub.CreatedBy = "guest"
	}
	sub.FullText = sub.BuildFullText()
	primary := subPrefix + utils.OrderKey(c.now())
	if err := c.putRecord(primary, subIDPrefix+sub.ID, sub); err != nil {
		return models.Submission{}, err
	}
	logger.Info("submission_created", "id", sub.ID, "created_by", sub.CreatedBy, "function", sub.FunctionID)
	submissionsCreated.Inc()
	return sub, nil
}

// ListSubmissions returns submissions in creation order, optionally filtered
// by status and/or creator.
func (c *Catalog) ListSubmissions(status, createdBy string) ([]models.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Submission
	err := c.scan(subPrefix, func(_ string, v []byte) error {
		var s models.Submission
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		if status != "" && s.Status != status {
			return nil
		}
		if createdBy != "" && s.CreatedBy != createdBy {
			return nil
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// GetSubmission returns the submission with the given id.
func (c *Catalog) GetSubmission(id string) (models.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s models.Submission
	_, ok, err := c.byID(subIDPrefix+id, &s)
	if err != nil {
		return models.Submission{}, err
	}
	if !ok {
		return models.Submission{}, fmt.Errorf("%w: submission %s", ErrNotFound, id)
	}
	return s, nil
}

// ApproveSubmission transitions a pending submission to approved and
// publishes exactly one prompt carrying its content. A submission that has
// already been approved or rejected is not transitioned again.
func (c *Catalog) ApproveSubmission(id string) (models.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s models.Submission
	primary, ok, err := c.byID(subIDPrefix+id, &s)
	if err != nil {
		return models.Prompt{}, err
	}
	if !ok {
		return models.Prompt{}, fmt.Errorf("%w: submission %s", ErrNotFound, id)
	}
	if s.Status != models.SubmissionStatusPending {
		return models.Prompt{}, fmt.Errorf("%w: submission %s already %s", ErrStateConflict, id, s.Status)
	}
	p := models.Prompt{
		ID:                c.newID(),
		SubmissionID:      s.ID,
		Title:             s.Title,
		Description:       s.Description,
		FunctionID:        s.FunctionID,
		CategoryID:        s.CategoryID,
		CategoryName:      s.CategoryName,
		AuthorID:          s.AuthorID,
		AuthorDisplayName: s.AuthorDisplayName,
		CraftContext:      s.CraftContext,
		CraftRole:         s.CraftRole,
		CraftAction:       s.CraftAction,
		CraftFormat:       s.CraftFormat,
		CraftTone:         s.CraftTone,
		FullText:          s.FullText,
		AvgRating:         0,
		UsesTotal:         0,
		Status:            models.PromptStatusPublished,
		Version:           models.PromptVersion,
		CreatedTS:         c.now().UTC().UnixNano(),
	}
	promptKey := promptPrefix + utils.OrderKey(c.now())
	if err := c.putRecord(promptKey, promptIDPrefix+p.ID, p); err != nil {
		return models.Prompt{}, err
	}
	s.Status = models.SubmissionStatusApproved
	s.PublishedPromptID = p.ID
	if err := c.putRecord(primary, "", s); err != nil {
		return models.Prompt{}, err
	}
	logger.Info("submission_approved", "id", id, "prompt_id", p.ID)
	submissionsApproved.Inc()
	return p, nil
}

// RejectSubmission transitions a pending submission to rejected and records
// the reviewer's comment. Terminal submissions are left untouched.
func (c *Catalog) RejectSubmission(id, comment string) (models.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s models.Submission
	primary, ok, err := c.byID(subIDPrefix+id, &s)
	if err != nil {
		return models.Submission{}, err
	}
	if !ok {
		return models.Submission{}, fmt.Errorf("%w: submission %s", ErrNotFound, id)
	}
	if s.Status != models.SubmissionStatusPending {
		return models.Submission{}, fmt.Errorf("%w: submission %s already %s", ErrStateConflict, id, s.Status)
	}
	s.Status = models.SubmissionStatusRejected
	s.ReviewComment = comment
	if err := c.putRecord(primary, "", s); err != nil {
		return models.Submission{}, err
	}
	logger.Info("submission_rejected", "id", id)
	submissionsRejected.Inc()
	return s, nil
}

// --- prompts ---

// ListPrompts returns published prompts in publication order, optionally
// filtered by function and category.
func (c *Catalog) ListPrompts(functionID, categoryID string) ([]models.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Prompt
	err := c.scan(promptPrefix, func(_ string, v []byte) error {
		var p models.Prompt
		if err := json.Unmarshal(v, &p); err != nil {
			return nil
		}
		if p.Status != models.PromptStatusPublished {
			return nil
		}
		if functionID != "" && p.FunctionID != functionID {
			return nil
		}
		if categoryID != "" && p.CategoryID != categoryID {
			return nil
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// GetPrompt returns the published prompt with the given id.
func (c *Catalog) GetPrompt(id string) (models.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, _, err := c.getPromptLocked(id)
	return p, err
}

func (c *Catalog) getPromptLocked(id string) (models.Prompt, string, error) {
	var p models.Prompt
	primary, ok, err := c.byID(promptIDPrefix+id, &p)
	if err != nil {
		return models.Prompt{}, "", err
	}
	if !ok {
		return models.Prompt{}, "", fmt.Errorf("%w: prompt %s", ErrNotFound, id)
	}
	return p, primary, nil
}

// --- ratings ---

// RatePrompt records userKey's star rating for a prompt, replacing any
// earlier rating by the same user, and returns the prompt with its refreshed
// average.
func (c *Catalog) RatePrompt(userKey, promptID string, stars int) (models.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if userKey == "" {
		return models.Prompt{}, fmt.Errorf("%w: user key required", ErrInvalidInput)
	}
	if stars < 1 || stars > 5 {
		return models.Prompt{}, fmt.Errorf("%w: stars must be between 1 and 5", ErrInvalidInput)
	}
	p, primary, err := c.getPromptLocked(promptID)
	if err != nil {
		return models.Prompt{}, err
	}
	r := models.Rating{UserKey: userKey, PromptID: promptID, Stars: stars, CreatedTS: c.now().UTC().UnixNano()}
	data, err := json.Marshal(r)
	if err != nil {
		return models.Prompt{}, err
	}
	if err := c.set(ratingPrefix+promptID+":"+userKey, data); err != nil {
		return models.Prompt{}, err
	}
	sum, count := 0, 0
	err = c.scan(ratingPrefix+promptID+":", func(_ string, v []byte) error {
		var rr models.Rating
		if err := json.Unmarshal(v, &rr); err != nil {
			return nil
		}
		sum += rr.Stars
		count++
		return nil
	})
	if err != nil {
		return models.Prompt{}, err
	}
	if count > 0 {
		p.AvgRating = float64(sum) / float64(count)
	} else {
		p.AvgRating = 0
	}
	if err := c.putRecord(primary, "", p); err != nil {
		return models.Prompt{}, err
	}
	logger.Info("prompt_rated", "prompt_id", promptID, "stars", stars, "avg", p.AvgRating)
	ratingsRecorded.Inc()
	return p, nil
}

// --- bookmarks ---

// bmUserToken escapes a caller-supplied user key for use as a key segment.
// User keys are opaque strings from signed headers and may themselves contain
// the ":" separator; without escaping, a scan for "alice" would also match
// keys written for "alice:x".
func bmUserToken(userKey string) string {
	return url.QueryEscape(userKey)
}

// ToggleBookmark flips userKey's bookmark on a prompt and reports whether it
// is now set.
func (c *Catalog) ToggleBookmark(userKey, promptID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if userKey == "" {
		return false, fmt.Errorf("%w: user key required", ErrInvalidInput)
	}
	if _, _, err := c.getPromptLocked(promptID); err != nil {
		return false, err
	}
	idxKey := bmIDPrefix + bmUserToken(userKey) + ":" + promptID
	pk, ok, err := c.get(idxKey)
	if err != nil {
		return false, err
	}
	if ok {
		if err := c.del(string(pk)); err != nil {
			return false, err
		}
		if err := c.del(idxKey); err != nil {
			return false, err
		}
		logger.Info("bookmark_removed", "prompt_id", promptID)
		bookmarkToggles.Inc()
		return false, nil
	}
	b := models.Bookmark{UserKey: userKey, PromptID: promptID, CreatedTS: c.now().UTC().UnixNano()}
	primary := bmPrefix + bmUserToken(userKey) + ":" + utils.OrderKey(c.now())
	if err := c.putRecord(primary, idxKey, b); err != nil {
		return false, err
	}
	logger.Info("bookmark_added", "prompt_id", promptID)
	bookmarkToggles.Inc()
	return true, nil
}

// IsBookmarked reports whether userKey has bookmarked the prompt.
func (c *Catalog) IsBookmarked(userKey, promptID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok, err := c.get(bmIDPrefix + bmUserToken(userKey) + ":" + promptID)
	return ok, err
}

// ListBookmarks returns the prompts userKey has bookmarked, oldest first.
// Bookmarks whose prompt no longer resolves are skipped.
func (c *Catalog) ListBookmarks(userKey string) ([]models.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Prompt
	err := c.scan(bmPrefix+bmUserToken(userKey)+":", func(_ string, v []byte) error {
		var b models.Bookmark
		if err := json.Unmarshal(v, &b); err != nil {
			return nil
		}
		if b.UserKey != userKey {
			return nil
		}
		p, _, err := c.getPromptLocked(b.PromptID)
		if err != nil {
			return nil
		}
		out = append(out, p)
		return nil
	})
	return out, err
}
