package store

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"promptstudio/pkg/models"
)

func testSeed() SeedData {
	return SeedData{
		Functions: []SeedFunction{{ID: "sales", Name: "Sales", Icon: "sales.svg"}},
		Categories: []SeedCategory{
			{FunctionID: "sales", Name: "Prospection"},
			{FunctionID: "sales", Name: "Account Planning"},
			{FunctionID: "sales", Name: "Négociation"},
		},
		Authors: []SeedAuthor{{ID: "auth-mansouryoum", DisplayName: "MansourYoum"}},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	var idSeq int
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c, err := Open(Options{
		Now: func() time.Time { return base },
		NewID: func() string {
			idSeq++
			return fmt.Sprintf("id-%04d", idSeq)
		},
	})
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Seed(testSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return c
}

func submissionFixture() models.Submission {
	return models.Submission{
		Title:             "Cold email opener",
		Description:       "Break the ice with a prospect",
		FunctionID:        "sales",
		CategoryID:        "cat-prospection",
		AuthorID:          "auth-mansouryoum",
		AuthorDisplayName: "MansourYoum",
		CraftContext:      "You are reaching out to a prospect for the first time",
		CraftRole:         "Senior SDR",
		CraftAction:       "Write a three-sentence cold email",
		CraftFormat:       "Plain text email",
		CraftTone:         "Direct but warm",
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.Seed(testSeed()); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	fns, err := c.ListFunctions(true)
	if err != nil {
		t.Fatalf("list functions: %v", err)
	}
	if len(fns) != 1 || fns[0].ID != "sales" {
		t.Fatalf("unexpected functions after reseed: %+v", fns)
	}
	cats, err := c.ListCategories("sales", true)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(cats))
	}
	if cats[0].Name != "Prospection" || cats[1].Name != "Account Planning" || cats[2].Name != "Négociation" {
		t.Fatalf("category order lost: %+v", cats)
	}
	authors, err := c.ListAuthors(true)
	if err != nil {
		t.Fatalf("list authors: %v", err)
	}
	if len(authors) != 1 || authors[0].ID != "auth-mansouryoum" {
		t.Fatalf("unexpected authors after reseed: %+v", authors)
	}
}

func TestGetOrCreateCategoryNormalizesNames(t *testing.T) {
	c := newTestCatalog(t)
	created, err := c.GetOrCreateCategory("sales", "Objection  Handling!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "cat-objection-handling" {
		t.Fatalf("unexpected id %q", created.ID)
	}
	if created.Name != "Objection  Handling!" {
		t.Fatalf("display name rewritten: %q", created.Name)
	}

	// equivalent spelling resolves to the same record
	again, err := c.GetOrCreateCategory("sales", "objection HANDLING")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.ID != created.ID || again.Name != created.Name {
		t.Fatalf("expected existing record, got %+v", again)
	}

	if _, err := c.GetOrCreateCategory("marketing", "Prospection"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown function, got %v", err)
	}
	if _, err := c.GetOrCreateCategory("sales", "  !! "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty key, got %v", err)
	}
}

func TestGetOrCreateAuthorKeepsFirstSpelling(t *testing.T) {
	c := newTestCatalog(t)
	a, err := c.GetOrCreateAuthor("mansouryoum ")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if a.ID != "auth-mansouryoum" {
		t.Fatalf("expected seeded author, got %+v", a)
	}
	if a.DisplayName != "MansourYoum" {
		t.Fatalf("display name rewritten to %q", a.DisplayName)
	}

	b, err := c.GetOrCreateAuthor("Jane Doe")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "auth-jane-doe" || b.NormalizedKey != "jane-doe" {
		t.Fatalf("unexpected author %+v", b)
	}
}

func TestCreateSubmissionChecksReferences(t *testing.T) {
	c := newTestCatalog(t)

	in := submissionFixture()
	sub, err := c.CreateSubmission(in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.ID == "" || sub.Status != models.SubmissionStatusPending {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if sub.CreatedBy != "guest" {
		t.Fatalf("expected guest fallback, got %q", sub.CreatedBy)
	}
	if sub.CategoryName != "Prospection" {
		t.Fatalf("category name not denormalized: %q", sub.CategoryName)
	}
	if sub.FullText != sub.BuildFullText() {
		t.Fatalf("full text not derived")
	}

	bad := in
	bad.FunctionID = "nope"
	if _, err := c.CreateSubmission(bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown function, got %v", err)
	}
	bad = in
	bad.CategoryID = "cat-nope"
	if _, err := c.CreateSubmission(bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown category, got %v", err)
	}
}

func TestApprovePublishesExactlyOnce(t *testing.T) {
	c := newTestCatalog(t)
	sub, err := c.CreateSubmission(submissionFixture())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := c.ApproveSubmission(sub.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if p.Status != models.PromptStatusPublished || p.Version != "1.0" {
		t.Fatalf("unexpected prompt %+v", p)
	}
	if p.SubmissionID != sub.ID || p.Title != sub.Title || p.FullText != sub.FullText {
		t.Fatalf("prompt content not copied from submission")
	}
	if p.AvgRating != 0 || p.UsesTotal != 0 {
		t.Fatalf("counters must start at zero: %+v", p)
	}

	got, err := c.GetSubmission(sub.ID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.Status != models.SubmissionStatusApproved || got.PublishedPromptID != p.ID {
		t.Fatalf("submission not linked: %+v", got)
	}

	// second approval conflicts and publishes nothing
	if _, err := c.ApproveSubmission(sub.ID); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
	prompts, err := c.ListPrompts("", "")
	if err != nil {
		t.Fatalf("list prompts: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("expected exactly one prompt, got %d", len(prompts))
	}

	// rejecting an approved submission conflicts too
	if _, err := c.RejectSubmission(sub.ID, "late"); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict on reject, got %v", err)
	}

	if _, err := c.ApproveSubmission("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectRecordsComment(t *testing.T) {
	c := newTestCatalog(t)
	sub, err := c.CreateSubmission(submissionFixture())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rej, err := c.RejectSubmission(sub.ID, "needs a clearer action")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rej.Status != models.SubmissionStatusRejected || rej.ReviewComment != "needs a clearer action" {
		t.Fatalf("unexpected submission %+v", rej)
	}
	if _, err := c.RejectSubmission(sub.ID, "again"); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
	prompts, _ := c.ListPrompts("", "")
	if len(prompts) != 0 {
		t.Fatalf("rejection must not publish, got %d prompts", len(prompts))
	}
}

func TestListSubmissionsFilters(t *testing.T) {
	c := newTestCatalog(t)
	a := submissionFixture()
	a.CreatedBy = "user-a"
	b := submissionFixture()
	b.CreatedBy = "user-b"
	subA, _ := c.CreateSubmission(a)
	if _, err := c.CreateSubmission(b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.ApproveSubmission(subA.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := c.ListSubmissions(models.SubmissionStatusPending, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].CreatedBy != "user-b" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	mine, err := c.ListSubmissions("", "user-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != subA.ID {
		t.Fatalf("unexpected creator filter result: %+v", mine)
	}
}

func TestRatingAggregation(t *testing.T) {
	c := newTestCatalog(t)
	sub, _ := c.CreateSubmission(submissionFixture())
	p, err := c.ApproveSubmission(sub.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := c.RatePrompt("u1", p.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := c.RatePrompt("u2", p.ID, 3); err != nil {
		t.Fatalf("rate: %v", err)
	}
	got, err := c.RatePrompt("u3", p.ID, 4)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if got.AvgRating != 4.0 {
		t.Fatalf("expected avg 4.0, got %v", got.AvgRating)
	}

	// re-rating replaces, it does not add a second vote
	got, err = c.RatePrompt("u1", p.ID, 1)
	if err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	want := (1.0 + 3.0 + 4.0) / 3.0
	if math.Abs(got.AvgRating-want) > 1e-9 {
		t.Fatalf("expected avg %v, got %v", want, got.AvgRating)
	}

	if _, err := c.RatePrompt("u1", p.ID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for stars=0, got %v", err)
	}
	if _, err := c.RatePrompt("u1", p.ID, 6); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for stars=6, got %v", err)
	}
	if _, err := c.RatePrompt("u1", "missing", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookmarkToggleIsInvolutive(t *testing.T) {
	c := newTestCatalog(t)
	s1, _ := c.CreateSubmission(submissionFixture())
	s2, _ := c.CreateSubmission(submissionFixture())
	p1, _ := c.ApproveSubmission(s1.ID)
	p2, _ := c.ApproveSubmission(s2.ID)

	added, err := c.ToggleBookmark("u1", p1.ID)
	if err != nil || !added {
		t.Fatalf("first toggle: added=%v err=%v", added, err)
	}
	if added, _ = c.ToggleBookmark("u1", p2.ID); !added {
		t.Fatalf("expected second bookmark added")
	}
	set, err := c.IsBookmarked("u1", p1.ID)
	if err != nil || !set {
		t.Fatalf("bookmark lookup: set=%v err=%v", set, err)
	}

	list, err := c.ListBookmarks("u1")
	if err != nil {
		t.Fatalf("list bookmarks: %v", err)
	}
	if len(list) != 2 || list[0].ID != p1.ID || list[1].ID != p2.ID {
		t.Fatalf("bookmark order lost: %+v", list)
	}

	// toggling again removes
	if added, _ = c.ToggleBookmark("u1", p1.ID); added {
		t.Fatalf("expected removal on second toggle")
	}
	if set, _ = c.IsBookmarked("u1", p1.ID); set {
		t.Fatalf("bookmark still set after removal")
	}
	list, _ = c.ListBookmarks("u1")
	if len(list) != 1 || list[0].ID != p2.ID {
		t.Fatalf("unexpected bookmarks after removal: %+v", list)
	}

	// other users are unaffected
	if list, _ = c.ListBookmarks("u2"); len(list) != 0 {
		t.Fatalf("u2 should have no bookmarks, got %+v", list)
	}

	if _, err := c.ToggleBookmark("u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookmarksIsolateSeparatorBearingUserKeys(t *testing.T) {
	c := newTestCatalog(t)
	sub, _ := c.CreateSubmission(submissionFixture())
	p, _ := c.ApproveSubmission(sub.ID)

	// user keys are opaque caller-supplied strings and may contain ":"
	if added, err := c.ToggleBookmark("alice:x", p.ID); err != nil || !added {
		t.Fatalf("toggle for alice:x: added=%v err=%v", added, err)
	}

	if list, _ := c.ListBookmarks("alice"); len(list) != 0 {
		t.Fatalf("alice sees bookmarks belonging to alice:x: %+v", list)
	}
	if set, _ := c.IsBookmarked("alice", p.ID); set {
		t.Fatalf("alice reported as having alice:x's bookmark")
	}

	list, err := c.ListBookmarks("alice:x")
	if err != nil || len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("alice:x bookmarks: %+v err=%v", list, err)
	}
	if set, _ := c.IsBookmarked("alice:x", p.ID); !set {
		t.Fatalf("alice:x bookmark lost")
	}

	// removal still round-trips through the escaped keys
	if added, _ := c.ToggleBookmark("alice:x", p.ID); added {
		t.Fatalf("expected removal on second toggle")
	}
	if list, _ := c.ListBookmarks("alice:x"); len(list) != 0 {
		t.Fatalf("bookmark survived removal: %+v", list)
	}
}

func TestListPromptsFilters(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.GetOrCreateCategory("sales", "Closing"); err != nil {
		t.Fatalf("category: %v", err)
	}

	first := submissionFixture()
	second := submissionFixture()
	second.CategoryID = "cat-closing"
	second.Title = "Deal closing checklist"
	s1, _ := c.CreateSubmission(first)
	s2, _ := c.CreateSubmission(second)
	p1, _ := c.ApproveSubmission(s1.ID)
	p2, _ := c.ApproveSubmission(s2.ID)

	// a pending submission never surfaces as a prompt
	if _, err := c.CreateSubmission(submissionFixture()); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := c.ListPrompts("", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != p1.ID || all[1].ID != p2.ID {
		t.Fatalf("unexpected prompt list: %+v", all)
	}

	byCat, err := c.ListPrompts("sales", "cat-closing")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byCat) != 1 || byCat[0].ID != p2.ID {
		t.Fatalf("category filter failed: %+v", byCat)
	}

	none, _ := c.ListPrompts("marketing", "")
	if len(none) != 0 {
		t.Fatalf("expected empty list for unknown function, got %+v", none)
	}
}
