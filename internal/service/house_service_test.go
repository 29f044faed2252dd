package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"arenda/internal/cache"
	"arenda/internal/config"
	"arenda/internal/database"
	"arenda/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHouseService(t *testing.T) (*HouseService, *database.DB, *miniredis.Miniredis) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "houses.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	listingCache := cache.NewListingCache(client, &logger)
	cacheCfg := config.CacheConfig{
		AreaTTL: 3600, IndexTTL: 3600, DetailTTL: 3600, PageTTL: 3600,
		PageSize: 2, HomeHouses: 5,
	}
	return NewHouseService(db, listingCache, cacheCfg, &logger), db, s
}

func seedHouse(t *testing.T, db *database.DB, title string, areaID, price int64) *models.House {
	t.Helper()
	house := &models.House{
		UserID: 1, AreaID: areaID, Title: title, Price: price,
		MinDays: 1, IndexImageURL: "http://img/h.jpg",
	}
	require.NoError(t, db.CreateHouse(context.Background(), house))
	return house
}

func TestHouseService_AreasCached(t *testing.T) {
	svc, db, _ := setupHouseService(t)
	ctx := context.Background()

	require.NoError(t, db.CreateArea(ctx, &models.Area{Name: "Центральный"}))

	first, err := svc.GetAreasJSON(ctx)
	require.NoError(t, err)

	// Новый район не виден, пока жив кэш
	require.NoError(t, db.CreateArea(ctx, &models.Area{Name: "Невский"}))

	second, err := svc.GetAreasJSON(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached payload must be returned verbatim")

	var areas []models.Area
	require.NoError(t, json.Unmarshal([]byte(second), &areas))
	assert.Len(t, areas, 1)
}

func TestHouseService_DetailCacheInvalidatedByImage(t *testing.T) {
	svc, db, _ := setupHouseService(t)
	ctx := context.Background()

	house := &models.House{UserID: 1, AreaID: 1, Title: "Loft", Price: 10000, MinDays: 1}
	require.NoError(t, db.CreateHouse(ctx, house))

	first, err := svc.GetHouseDetailJSON(ctx, house.ID)
	require.NoError(t, err)
	assert.NotContains(t, first, "http://img/new.jpg")

	require.NoError(t, svc.AttachHouseImage(ctx, house.ID, "http://img/new.jpg"))

	// Инвалидация после загрузки картинки: деталь пересчитана
	second, err := svc.GetHouseDetailJSON(ctx, house.ID)
	require.NoError(t, err)
	assert.Contains(t, second, "http://img/new.jpg")
}

func TestHouseService_DetailNotFound(t *testing.T) {
	svc, _, _ := setupHouseService(t)
	_, err := svc.GetHouseDetailJSON(context.Background(), 404)
	assert.ErrorIs(t, err, ErrHouseNotFound)
}

func TestHouseService_SearchPagesCached(t *testing.T) {
	svc, db, _ := setupHouseService(t)
	ctx := context.Background()

	seedHouse(t, db, "One", 1, 10000)
	seedHouse(t, db, "Two", 1, 20000)
	seedHouse(t, db, "Three", 1, 30000)

	query := SearchQuery{AreaID: 1, SortKey: models.SortNew, Page: 1}
	first, err := svc.SearchHousesJSON(ctx, query)
	require.NoError(t, err)

	var envelope struct {
		Errno string `json:"errno"`
		Data  struct {
			Houses      []map[string]interface{} `json:"houses"`
			TotalPage   int                      `json:"total_page"`
			CurrentPage int                      `json:"current_page"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(first), &envelope))
	assert.Equal(t, "0", envelope.Errno)
	assert.Len(t, envelope.Data.Houses, 2, "page size is 2")
	assert.Equal(t, 2, envelope.Data.TotalPage)
	assert.Equal(t, 1, envelope.Data.CurrentPage)

	// Новое жильё не видно, пока страница в кэше; ответ байт-в-байт
	seedHouse(t, db, "Four", 1, 40000)
	second, err := svc.SearchHousesJSON(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Другая страница — отдельная запись
	page2, err := svc.SearchHousesJSON(ctx, SearchQuery{AreaID: 1, SortKey: models.SortNew, Page: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first, page2)
}

func TestHouseService_SearchExcludesBookedHouses(t *testing.T) {
	svc, db, _ := setupHouseService(t)
	ctx := context.Background()

	booked := seedHouse(t, db, "Booked", 1, 10000)
	seedHouse(t, db, "Free", 1, 20000)

	order := &models.Order{
		UserID: 2, HouseID: booked.ID,
		BeginDate: mustDate(t, "2024-06-10"), EndDate: mustDate(t, "2024-06-15"),
		HousePrice: booked.Price,
	}
	require.NoError(t, db.CreateOrderWithLock(ctx, order))

	begin := mustDate(t, "2024-06-12")
	end := mustDate(t, "2024-06-13")
	payload, err := svc.SearchHousesJSON(ctx, SearchQuery{BeginDate: &begin, EndDate: &end, Page: 1})
	require.NoError(t, err)
	assert.NotContains(t, payload, "Booked")
	assert.Contains(t, payload, "Free")

	// Без дат фильтр доступности не применяется
	all, err := svc.SearchHousesJSON(ctx, SearchQuery{Page: 1})
	require.NoError(t, err)
	assert.Contains(t, all, "Booked")
}

func TestHouseService_SearchInvalidRange(t *testing.T) {
	svc, _, _ := setupHouseService(t)

	begin := mustDate(t, "2024-06-15")
	end := mustDate(t, "2024-06-10")
	_, err := svc.SearchHousesJSON(context.Background(), SearchQuery{BeginDate: &begin, EndDate: &end})
	assert.ErrorIs(t, err, database.ErrInvalidRange)
}

func TestHouseService_PageBeyondResultNotCached(t *testing.T) {
	svc, db, s := setupHouseService(t)
	ctx := context.Background()

	seedHouse(t, db, "Only", 1, 10000)

	payload, err := svc.SearchHousesJSON(ctx, SearchQuery{Page: 9})
	require.NoError(t, err)

	var envelope struct {
		Data struct {
			Houses      []map[string]interface{} `json:"houses"`
			TotalPage   int                      `json:"total_page"`
			CurrentPage int                      `json:"current_page"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &envelope))
	assert.Empty(t, envelope.Data.Houses)
	assert.Equal(t, 1, envelope.Data.TotalPage)
	assert.Equal(t, 9, envelope.Data.CurrentPage)

	// Пустая страница за пределами результата в кэш не пишется
	key := SearchQuery{Page: 9, SortKey: models.SortNew}.Signature()
	assert.False(t, s.Exists(key))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
