package blog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/table"
	"inkpress/internal/table/memory"
)

func findCategory(cats []Category, name string) *Category {
	for i := range cats {
		if cats[i].Name == name {
			return &cats[i]
		}
	}
	return nil
}

func TestCategories_ImplicitCreateAndCounts(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil)

	mustCreate(t, r, PostInput{Title: "a", Category: "go", Status: "PUBLISHED"})
	mustCreate(t, r, PostInput{Title: "b", Category: "go", Status: "PUBLISHED"})
	mustCreate(t, r, PostInput{Title: "c", Category: "go"})
	mustCreate(t, r, PostInput{Title: "d", Category: "Go"})

	cats, err := r.ListCategories(ctx, Public)
	require.NoError(t, err)
	require.Len(t, cats, 2, "names are case-sensitive")
	assert.Equal(t, "Go", cats[0].Name)
	assert.Equal(t, 0, cats[0].PostCount)
	assert.Equal(t, "go", cats[1].Name)
	assert.Equal(t, 2, cats[1].PostCount, "only published posts count")
}

func TestCategories_CountFollowsPosts(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil)
	p := mustCreate(t, r, PostInput{Title: "a", Category: "go", Status: "PUBLISHED"})

	_, err := r.UpdatePost(ctx, p.ID, PostPatch{Category: strPtr("rust")})
	require.NoError(t, err)

	cats, err := r.ListCategories(ctx, Public)
	require.NoError(t, err)
	assert.Equal(t, 0, findCategory(cats, "go").PostCount)
	assert.Equal(t, 1, findCategory(cats, "rust").PostCount)

	_, err = r.UpdatePost(ctx, p.ID, PostPatch{Status: strPtr("DRAFT")})
	require.NoError(t, err)
	cats, err = r.ListCategories(ctx, Public)
	require.NoError(t, err)
	assert.Equal(t, 0, findCategory(cats, "rust").PostCount)
}

func TestUpsertCategory(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil)

	cat, created, err := r.UpsertCategory(ctx, "  Go  ", strPtr("Gophers"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Go", cat.Name)
	assert.Equal(t, "Gophers", *cat.Description)

	// Same name again updates instead of conflicting.
	cat, created, err = r.UpsertCategory(ctx, "Go", strPtr("The Go language"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "The Go language", *cat.Description)

	// Omitted description keeps the stored one.
	cat, _, err = r.UpsertCategory(ctx, "Go", nil)
	require.NoError(t, err)
	assert.Equal(t, "The Go language", *cat.Description)

	cats, err := r.ListCategories(ctx, Admin)
	require.NoError(t, err)
	require.Len(t, cats, 1)

	_, _, err = r.UpsertCategory(ctx, "   ", nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestUpsertCategory_KeepsImplicitRecord(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil)
	mustCreate(t, r, PostInput{Title: "a", Category: "go", Status: "PUBLISHED"})

	cat, created, err := r.UpsertCategory(ctx, "go", strPtr("desc"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, cat.PostCount)
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, nil)
	p := mustCreate(t, r, PostInput{Title: "a", Category: "go"})

	require.NoError(t, r.DeleteCategory(ctx, "go"))

	var nf *NotFoundError
	require.ErrorAs(t, r.DeleteCategory(ctx, "go"), &nf)
	require.ErrorAs(t, r.DeleteCategory(ctx, "never"), &nf)

	// Posts keep their free-text category.
	got, err := r.GetPost(ctx, p.ID, Admin)
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	assert.Equal(t, "go", *got.Category)

	cats, err := r.ListCategories(ctx, Admin)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestCleanupCategories(t *testing.T) {
	ctx := context.Background()
	tbl := memory.New()
	r := newTestRepo(t, tbl)

	_, _, err := r.UpsertCategory(ctx, "keep", nil)
	require.NoError(t, err)
	for _, name := range []string{"", "   "} {
		it, err := categoryItem(categoryRecord{Name: name}, 1)
		require.NoError(t, err)
		require.NoError(t, tbl.Put(ctx, it, table.Always))
	}

	public, err := r.ListCategories(ctx, Public)
	require.NoError(t, err)
	assert.Len(t, public, 1, "blank names are hidden from the public")

	admin, err := r.ListCategories(ctx, Admin)
	require.NoError(t, err)
	assert.Len(t, admin, 3)

	deleted, err := r.CleanupCategories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CATEGORY#", "CATEGORY#   "}, deleted)

	admin, err = r.ListCategories(ctx, Admin)
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.Equal(t, "keep", admin[0].Name)

	deleted, err = r.CleanupCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
