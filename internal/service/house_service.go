package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arenda/internal/cache"
	"arenda/internal/config"
	"arenda/internal/database"
	"arenda/internal/domain"
	"arenda/internal/logging"
	"arenda/internal/models"
	"arenda/internal/resp"

	"github.com/rs/zerolog"
)

var ErrHouseNotFound = errors.New("house not found")

// HouseService обслуживает справочник районов, главную, деталь жилья и
// постраничный поиск. Все четыре пути — read-through через ListingCache:
// промах считается из БД, сериализуется один раз и кладется в кэш.
// Одновременные промахи по одному ключу пересчитывают его параллельно,
// single-flight нет: чтения идемпотентны, лишняя нагрузка на БД принята.
type HouseService struct {
	repo     domain.Repository
	cache    *cache.ListingCache
	cacheCfg config.CacheConfig
	logger   zerolog.Logger
}

func NewHouseService(repo domain.Repository, listingCache *cache.ListingCache, cacheCfg config.CacheConfig, logger *zerolog.Logger) *HouseService {
	return &HouseService{
		repo:     repo,
		cache:    listingCache,
		cacheCfg: cacheCfg,
		logger:   logging.Component(logger, "house-service"),
	}
}

// GetAreasJSON возвращает JSON массива районов (не конверт).
func (s *HouseService) GetAreasJSON(ctx context.Context) (string, error) {
	if payload, ok := s.cache.GetAreas(ctx); ok {
		s.logger.Debug().Msg("hit area info cache")
		return payload, nil
	}

	areas, err := s.repo.GetAreas(ctx)
	if err != nil {
		return "", fmt.Errorf("load areas: %w", err)
	}
	if areas == nil {
		areas = []models.Area{}
	}

	data, err := json.Marshal(areas)
	if err != nil {
		return "", fmt.Errorf("marshal areas: %w", err)
	}

	s.cache.PutAreas(ctx, string(data), s.cacheCfg.AreaTTLDuration())
	return string(data), nil
}

// GetHomePageJSON возвращает JSON подборки жилья для главной (не конверт).
func (s *HouseService) GetHomePageJSON(ctx context.Context) (string, error) {
	if payload, ok := s.cache.GetHomePage(ctx); ok {
		s.logger.Debug().Msg("hit home page cache")
		return payload, nil
	}

	houses, err := s.repo.GetHomePageHouses(ctx, s.cacheCfg.HomeHouses)
	if err != nil {
		return "", fmt.Errorf("load home page houses: %w", err)
	}

	views := make([]map[string]interface{}, 0, len(houses))
	for _, h := range houses {
		views = append(views, h.BasicView())
	}

	data, err := json.Marshal(views)
	if err != nil {
		return "", fmt.Errorf("marshal home page houses: %w", err)
	}

	s.cache.PutHomePage(ctx, string(data), s.cacheCfg.IndexTTLDuration())
	return string(data), nil
}

// GetHouseDetailJSON возвращает JSON полного представления жилья (не конверт).
func (s *HouseService) GetHouseDetailJSON(ctx context.Context, houseID int64) (string, error) {
	if payload, ok := s.cache.GetHouseDetail(ctx, houseID); ok {
		s.logger.Debug().Int64("house_id", houseID).Msg("hit house detail cache")
		return payload, nil
	}

	house, err := s.repo.GetHouse(ctx, houseID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrHouseNotFound
		}
		return "", fmt.Errorf("load house %d: %w", houseID, err)
	}

	data, err := json.Marshal(house.FullView())
	if err != nil {
		return "", fmt.Errorf("marshal house %d: %w", houseID, err)
	}

	s.cache.PutHouseDetail(ctx, houseID, string(data), s.cacheCfg.DetailTTLDuration())
	return string(data), nil
}

// SearchQuery нормализованный запрос поиска жилья.
type SearchQuery struct {
	AreaID    int64
	BeginDate *time.Time
	EndDate   *time.Time
	SortKey   string
	Page      int
}

// Signature детерминированная сигнатура фильтра для ключа кэша страниц.
func (q SearchQuery) Signature() string {
	areaStr := ""
	if q.AreaID > 0 {
		areaStr = fmt.Sprintf("%d", q.AreaID)
	}
	beginStr, endStr := "", ""
	if q.BeginDate != nil {
		beginStr = q.BeginDate.Format("2006-01-02")
	}
	if q.EndDate != nil {
		endStr = q.EndDate.Format("2006-01-02")
	}
	sortKey := q.SortKey
	if sortKey == "" {
		sortKey = models.SortNew
	}
	return cache.PageKey(areaStr, beginStr, endStr, sortKey)
}

// SearchHousesJSON отдает готовый конверт страницы поиска. Попадание в кэш
// возвращает сохраненный JSON байт-в-байт, минуя пересериализацию.
//
// Фильтр доступности: жильё с заказами, пересекающими запрошенное окно,
// исключается из выборки. Запрос страницы за последней возвращает пустой
// список с теми же total_page/current_page.
func (s *HouseService) SearchHousesJSON(ctx context.Context, query SearchQuery) (string, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.BeginDate != nil && query.EndDate != nil && query.EndDate.Before(*query.BeginDate) {
		return "", database.ErrInvalidRange
	}

	key := query.Signature()
	if payload, ok := s.cache.GetPage(ctx, key, query.Page); ok {
		s.logger.Debug().Str("key", key).Int("page", query.Page).Msg("hit houses page cache")
		return payload, nil
	}

	excludeIDs, err := s.repo.ConflictingHouseIDs(ctx, query.BeginDate, query.EndDate)
	if err != nil {
		return "", fmt.Errorf("build exclusion set: %w", err)
	}

	filter := database.SearchFilter{
		AreaID:     query.AreaID,
		ExcludeIDs: excludeIDs,
		SortKey:    query.SortKey,
	}
	houses, totalPages, err := s.repo.SearchHouses(ctx, filter, query.Page, s.cacheCfg.PageSize)
	if err != nil {
		return "", fmt.Errorf("search houses: %w", err)
	}

	views := make([]map[string]interface{}, 0, len(houses))
	for _, h := range houses {
		views = append(views, h.BasicView())
	}

	payload := renderSearchPage(views, totalPages, query.Page)

	// Кэшируем только страницы в пределах результата.
	if query.Page <= totalPages {
		s.cache.PutPage(ctx, key, query.Page, payload, s.cacheCfg.PageTTLDuration())
	}
	return payload, nil
}

// renderSearchPage собирает целый конверт ответа, который и кладется в кэш:
// попадание отдается клиенту без повторной сериализации.
func renderSearchPage(views []map[string]interface{}, totalPages, currentPage int) string {
	return resp.Render(resp.OK(map[string]interface{}{
		"houses":       views,
		"total_page":   totalPages,
		"current_page": currentPage,
	}))
}

func (s *HouseService) CreateHouse(ctx context.Context, house *models.House) error {
	if house.Title == "" || house.Price <= 0 || house.AreaID <= 0 {
		return errors.New("title, price and area are required")
	}
	if house.MinDays <= 0 {
		house.MinDays = 1
	}
	return s.repo.CreateHouse(ctx, house)
}

func (s *HouseService) GetUserHouses(ctx context.Context, userID int64) ([]*models.House, error) {
	return s.repo.GetUserHouses(ctx, userID)
}

// AttachHouseImage сохраняет ссылку на главную картинку и сбрасывает кэш
// детали, чтобы страница не отдавала жильё без картинки до конца TTL.
func (s *HouseService) AttachHouseImage(ctx context.Context, houseID int64, imageURL string) error {
	if imageURL == "" {
		return errors.New("image url is required")
	}
	if _, err := s.repo.GetHouse(ctx, houseID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrHouseNotFound
		}
		return err
	}
	if err := s.repo.UpdateHouseImage(ctx, houseID, imageURL); err != nil {
		return err
	}
	s.cache.InvalidateHouseDetail(ctx, houseID)
	return nil
}
