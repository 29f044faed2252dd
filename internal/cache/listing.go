package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"arenda/internal/logging"
	"arenda/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyAreaInfo     = "area_info"
	keyHomePageData = "home_page_data"
	keyHouseDetail  = "house_info_%d"
	keyHousePages   = "houses_%s_%s_%s_%s"
)

// ListingCache кэш списков поверх внешнего Redis. Кэш — только оптимизация:
// любая ошибка чтения или записи приравнивается к промаху, источником
// истины всегда остается БД. Активной инвалидации при записях нет,
// устаревание ограничено только TTL.
type ListingCache struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewListingCache(client *redis.Client, logger *zerolog.Logger) *ListingCache {
	return &ListingCache{client: client, logger: logging.Component(logger, "listing-cache")}
}

// GetAreas возвращает закэшированный JSON справочника районов.
func (c *ListingCache) GetAreas(ctx context.Context) (string, bool) {
	return c.get(ctx, keyAreaInfo, "area")
}

func (c *ListingCache) PutAreas(ctx context.Context, payload string, ttl time.Duration) {
	c.put(ctx, keyAreaInfo, payload, ttl)
}

// GetHomePage возвращает закэшированный JSON подборки для главной.
func (c *ListingCache) GetHomePage(ctx context.Context) (string, bool) {
	return c.get(ctx, keyHomePageData, "index")
}

func (c *ListingCache) PutHomePage(ctx context.Context, payload string, ttl time.Duration) {
	c.put(ctx, keyHomePageData, payload, ttl)
}

// GetHouseDetail возвращает закэшированный JSON детали жилья.
func (c *ListingCache) GetHouseDetail(ctx context.Context, houseID int64) (string, bool) {
	return c.get(ctx, fmt.Sprintf(keyHouseDetail, houseID), "detail")
}

func (c *ListingCache) PutHouseDetail(ctx context.Context, houseID int64, payload string, ttl time.Duration) {
	c.put(ctx, fmt.Sprintf(keyHouseDetail, houseID), payload, ttl)
}

func (c *ListingCache) InvalidateHouseDetail(ctx context.Context, houseID int64) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, fmt.Sprintf(keyHouseDetail, houseID)).Err(); err != nil {
		c.logger.Error().Err(err).Int64("house_id", houseID).Msg("invalidate detail failed")
	}
}

// PageKey детерминированная сигнатура нормализованного фильтра поиска.
func PageKey(areaID, beginDate, endDate, sortKey string) string {
	return fmt.Sprintf(keyHousePages, areaID, beginDate, endDate, sortKey)
}

// GetPage читает готовый ответ страницы поиска. Страницы одной сигнатуры
// лежат в одном хэше, но истекают независимо: рядом с полем страницы
// хранится поле с меткой истечения. Просроченная страница — промах.
func (c *ListingCache) GetPage(ctx context.Context, key string, page int) (string, bool) {
	if c.client == nil {
		return "", false
	}
	field := strconv.Itoa(page)
	vals, err := c.client.HMGet(ctx, key, field, field+":exp").Result()
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("page cache read failed")
		metrics.IncCacheMiss("page")
		return "", false
	}

	payload, ok := vals[0].(string)
	if !ok || payload == "" {
		metrics.IncCacheMiss("page")
		return "", false
	}
	expStr, ok := vals[1].(string)
	if !ok {
		metrics.IncCacheMiss("page")
		return "", false
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || time.Now().Unix() >= exp {
		metrics.IncCacheMiss("page")
		return "", false
	}

	metrics.IncCacheHit("page")
	// Возвращаем ровно тот JSON, что был сохранен, без пересериализации.
	return payload, true
}

// PutPage пишет готовый ответ страницы и её срок жизни одной MULTI/EXEC
// транзакцией. EXPIRE на весь ключ — страховка от накопления мусора,
// срок жизни отдельной страницы задает поле :exp.
func (c *ListingCache) PutPage(ctx context.Context, key string, page int, payload string, ttl time.Duration) {
	if c.client == nil {
		return
	}
	field := strconv.Itoa(page)
	exp := time.Now().Add(ttl).Unix()

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, payload)
	pipe.HSet(ctx, key, field+":exp", strconv.FormatInt(exp, 10))
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// Неудачная запись в кэш не становится ошибкой запроса.
		c.logger.Error().Err(err).Str("key", key).Int("page", page).Msg("page cache write failed")
	}
}

// InvalidatePages сбрасывает все страницы одной сигнатуры поиска.
func (c *ListingCache) InvalidatePages(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("invalidate pages failed")
	}
}

func (c *ListingCache) get(ctx context.Context, key, name string) (string, bool) {
	if c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		metrics.IncCacheMiss(name)
		return "", false
	}
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("cache read failed")
		metrics.IncCacheMiss(name)
		return "", false
	}
	metrics.IncCacheHit(name)
	return val, true
}

func (c *ListingCache) put(ctx context.Context, key, payload string, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if err := c.client.SetEx(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("cache write failed")
	}
}
