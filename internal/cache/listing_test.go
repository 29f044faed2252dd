package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *ListingCache) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.Nop()
	return s, NewListingCache(client, &logger)
}

func TestListingCache_Areas(t *testing.T) {
	s, c := setupCache(t)
	ctx := context.Background()

	_, ok := c.GetAreas(ctx)
	assert.False(t, ok)

	payload := `[{"aid":1,"aname":"Центральный"}]`
	c.PutAreas(ctx, payload, time.Hour)

	got, ok := c.GetAreas(ctx)
	require.True(t, ok)
	// Сохраненный JSON возвращается байт-в-байт
	assert.Equal(t, payload, got)

	s.FastForward(2 * time.Hour)
	_, ok = c.GetAreas(ctx)
	assert.False(t, ok, "payload must expire with its TTL")
}

func TestListingCache_HouseDetail(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	payload := `{"hid":7,"title":"Loft"}`
	c.PutHouseDetail(ctx, 7, payload, time.Hour)

	got, ok := c.GetHouseDetail(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	// Другой id — отдельный ключ
	_, ok = c.GetHouseDetail(ctx, 8)
	assert.False(t, ok)

	c.InvalidateHouseDetail(ctx, 7)
	_, ok = c.GetHouseDetail(ctx, 7)
	assert.False(t, ok)
}

func TestListingCache_PageRoundTrip(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	key := PageKey("1", "2024-06-10", "2024-06-15", "new")
	payload := `{"errno":"0","errmsg":"OK","data":{"houses":[],"total_page":1,"current_page":1}}`
	c.PutPage(ctx, key, 1, payload, time.Hour)

	got, ok := c.GetPage(ctx, key, 1)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	// Другая страница той же сигнатуры — промах
	_, ok = c.GetPage(ctx, key, 2)
	assert.False(t, ok)

	// Другая сигнатура — отдельный ключ
	otherKey := PageKey("2", "2024-06-10", "2024-06-15", "new")
	_, ok = c.GetPage(ctx, otherKey, 1)
	assert.False(t, ok)
}

func TestListingCache_PagesExpireIndependently(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	key := PageKey("", "", "", "new")
	c.PutPage(ctx, key, 1, `{"page":1}`, 30*time.Millisecond)
	c.PutPage(ctx, key, 2, `{"page":2}`, time.Hour)

	time.Sleep(50 * time.Millisecond)

	// Первая страница просрочена, вторая жива: страницы одного хэша
	// истекают независимо
	_, ok := c.GetPage(ctx, key, 1)
	assert.False(t, ok)

	got, ok := c.GetPage(ctx, key, 2)
	require.True(t, ok)
	assert.Equal(t, `{"page":2}`, got)
}

func TestListingCache_WholeKeyExpiry(t *testing.T) {
	s, c := setupCache(t)
	ctx := context.Background()

	key := PageKey("3", "", "", "booking")
	c.PutPage(ctx, key, 1, `{"page":1}`, time.Hour)

	// EXPIRE на весь ключ страхует от накопления мусора
	s.FastForward(2 * time.Hour)
	_, ok := c.GetPage(ctx, key, 1)
	assert.False(t, ok)
}

func TestListingCache_InvalidatePages(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	key := PageKey("1", "", "", "new")
	c.PutPage(ctx, key, 1, `{"page":1}`, time.Hour)
	c.PutPage(ctx, key, 2, `{"page":2}`, time.Hour)

	c.InvalidatePages(ctx, key)

	_, ok := c.GetPage(ctx, key, 1)
	assert.False(t, ok)
	_, ok = c.GetPage(ctx, key, 2)
	assert.False(t, ok)
}

func TestListingCache_NilClient(t *testing.T) {
	logger := zerolog.Nop()
	c := NewListingCache(nil, &logger)
	ctx := context.Background()

	// Без Redis кэш превращается в no-op, а не в панику
	c.PutAreas(ctx, "[]", time.Hour)
	_, ok := c.GetAreas(ctx)
	assert.False(t, ok)

	c.PutPage(ctx, "key", 1, "{}", time.Hour)
	_, ok = c.GetPage(ctx, "key", 1)
	assert.False(t, ok)
}
