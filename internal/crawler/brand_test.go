package crawler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/catalogworker/internal/models"
)

func product(title string) string {
	return fmt.Sprintf(`<h1>%s</h1><span class="MuiBox-root bbq-0">$10</span>`, title)
}

func testHarvester(f PageFetcher, opts HarvestOptions) *Harvester {
	return NewHarvester(f, DefaultSiteConfig("https://www.bbqguys.com"), opts, nil)
}

func TestHarvestBrandsInOrder(t *testing.T) {
	napoleon := "https://www.bbqguys.com/brands/napoleon"
	f := newMockFetcher(t, map[string]string{
		brandURL:                      listingPage("/i/1", "/i/2", "/i/404"),
		"https://www.bbqguys.com/i/1": product("One"),
		"https://www.bbqguys.com/i/2": product("Two"),
		napoleon:                      listingPage("/i/3"),
		"https://www.bbqguys.com/i/3": product("Three"),
	})

	result := testHarvester(f, HarvestOptions{}).Run(context.Background(), []models.BrandTarget{
		{Name: "Blaze", URL: brandURL},
		{Name: "Napoleon", URL: napoleon},
	})

	require.Len(t, result.Records, 3)
	assert.Equal(t, "One", result.Records[0].Title)
	assert.Equal(t, "Two", result.Records[1].Title)
	assert.Equal(t, "Three", result.Records[2].Title)
	assert.Empty(t, result.Failed)

	require.Len(t, result.Brands, 2)
	assert.Equal(t, 3, result.Brands[0].URLs)
	assert.Equal(t, 2, result.Brands[0].Records)
	assert.Equal(t, 1, result.Brands[0].Failures)
}

func TestHarvestLimitPerBrand(t *testing.T) {
	f := newMockFetcher(t, map[string]string{
		brandURL:                      listingPage("/i/1", "/i/2", "/i/3"),
		"https://www.bbqguys.com/i/1": product("One"),
		"https://www.bbqguys.com/i/2": product("Two"),
		"https://www.bbqguys.com/i/3": product("Three"),
	})

	for limit, want := range map[int]int{1: 1, 2: 2, 0: 3} {
		records, _ := testHarvester(f, HarvestOptions{Limit: limit}).HarvestBrand(context.Background(), models.BrandTarget{Name: "Blaze", URL: brandURL})
		assert.Len(t, records, want, "limit %d", limit)
	}
}

func TestHarvestFailedBrands(t *testing.T) {
	f := newMockFetcher(t, map[string]string{
		brandURL: listingPage("/i/404"),
	})

	result := testHarvester(f, HarvestOptions{}).Run(context.Background(), []models.BrandTarget{
		{Name: "Blaze", URL: brandURL},
		{Name: "Ghost", URL: "https://www.bbqguys.com/brands/ghost"},
		{Name: "Blank", URL: ""},
	})

	assert.Empty(t, result.Records)
	assert.Equal(t, []string{"Blaze", "Ghost", "Blank"}, result.Failed)
	assert.Equal(t, 1, result.Brands[1].Pages)
}

func TestHarvestMaxPagesCapsDetectedCount(t *testing.T) {
	pagination := `<nav aria-label="pagination"><button class="MuiPaginationItem-page">5</button></nav>`
	f := newMockFetcher(t, map[string]string{
		brandURL:             pagination + listingPage("/i/1"),
		brandURL + "?page=2": listingPage("/i/2"),
	})

	records, tally := testHarvester(f, HarvestOptions{MaxPages: 2}).HarvestBrand(context.Background(), models.BrandTarget{Name: "Blaze", URL: brandURL})
	assert.Equal(t, 2, tally.Pages)
	assert.Equal(t, 2, tally.URLs)
	// both product pages are missing from the mock
	assert.Empty(t, records)
	assert.NotContains(t, f.requests, brandURL+"?page=3")
}

func TestHarvestStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newMockFetcher(t, map[string]string{brandURL: listingPage("/i/1")})
	result := testHarvester(f, HarvestOptions{}).Run(ctx, []models.BrandTarget{{Name: "Blaze", URL: brandURL}})
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Brands)
}
