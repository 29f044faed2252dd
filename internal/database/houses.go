package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arenda/internal/models"
)

func (db *DB) CreateArea(ctx context.Context, area *models.Area) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO areas (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, area.Name)
	if err != nil {
		return fmt.Errorf("failed to create area: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil && id != 0 {
		area.ID = id
	}
	return nil
}

func (db *DB) GetAreas(ctx context.Context) ([]models.Area, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM areas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get areas: %w", err)
	}
	defer rows.Close()

	var areas []models.Area
	for rows.Next() {
		var area models.Area
		if err := rows.Scan(&area.ID, &area.Name); err != nil {
			return nil, fmt.Errorf("failed to scan area: %w", err)
		}
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

func (db *DB) CreateHouse(ctx context.Context, house *models.House) error {
	query := `INSERT INTO houses (
                user_id, area_id, title, price, address, room_count, acreage,
                unit, capacity, beds, deposit, min_days, max_days,
                index_image_url, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		house.UserID,
		house.AreaID,
		house.Title,
		house.Price,
		house.Address,
		house.RoomCount,
		house.Acreage,
		house.Unit,
		house.Capacity,
		house.Beds,
		house.Deposit,
		house.MinDays,
		house.MaxDays,
		house.IndexImageURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create house: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	house.ID = id
	house.CreatedAt = now
	house.UpdatedAt = now
	return nil
}

func (db *DB) GetHouse(ctx context.Context, id int64) (*models.House, error) {
	query := `SELECT id, user_id, area_id, title, price, address, room_count,
                     acreage, unit, capacity, beds, deposit, min_days, max_days,
                     order_count, index_image_url, created_at, updated_at
              FROM houses WHERE id = ?`
	house, err := scanHouse(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get house: %w", err)
	}
	return house, nil
}

func (db *DB) GetUserHouses(ctx context.Context, userID int64) ([]*models.House, error) {
	query := `SELECT id, user_id, area_id, title, price, address, room_count,
                     acreage, unit, capacity, beds, deposit, min_days, max_days,
                     order_count, index_image_url, created_at, updated_at
              FROM houses WHERE user_id = ? ORDER BY created_at DESC`
	return db.queryHouses(ctx, query, userID)
}

// GetHomePageHouses возвращает жильё с наибольшим числом заказов для главной.
func (db *DB) GetHomePageHouses(ctx context.Context, limit int) ([]*models.House, error) {
	query := `SELECT id, user_id, area_id, title, price, address, room_count,
                     acreage, unit, capacity, beds, deposit, min_days, max_days,
                     order_count, index_image_url, created_at, updated_at
              FROM houses WHERE index_image_url != ''
              ORDER BY order_count DESC LIMIT ?`
	return db.queryHouses(ctx, query, limit)
}

// SearchFilter нормализованные условия поиска жилья.
type SearchFilter struct {
	AreaID     int64
	ExcludeIDs []int64
	SortKey    string
}

// SearchHouses выполняет постраничный поиск. Страницы нумеруются с единицы.
// Запрос страницы за пределами результата возвращает пустой список при
// неизменном числе страниц.
func (db *DB) SearchHouses(ctx context.Context, filter SearchFilter, page, pageSize int) ([]*models.House, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = models.DefaultPageCapacity
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter.AreaID > 0 {
		conds = append(conds, "area_id = ?")
		args = append(args, filter.AreaID)
	}
	if len(filter.ExcludeIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.ExcludeIDs)), ",")
		conds = append(conds, fmt.Sprintf("id NOT IN (%s)", placeholders))
		for _, id := range filter.ExcludeIDs {
			args = append(args, id)
		}
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM houses"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count houses: %w", err)
	}
	totalPages := (total + pageSize - 1) / pageSize

	var orderBy string
	switch filter.SortKey {
	case models.SortBooking:
		orderBy = "order_count DESC"
	case models.SortPriceInc:
		orderBy = "price ASC"
	case models.SortPriceDes:
		orderBy = "price DESC"
	default:
		orderBy = "created_at DESC"
	}

	query := fmt.Sprintf(`SELECT id, user_id, area_id, title, price, address, room_count,
                     acreage, unit, capacity, beds, deposit, min_days, max_days,
                     order_count, index_image_url, created_at, updated_at
              FROM houses%s ORDER BY %s, id LIMIT ? OFFSET ?`, where, orderBy)
	args = append(args, pageSize, (page-1)*pageSize)

	houses, err := db.queryHouses(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return houses, totalPages, nil
}

func (db *DB) UpdateHouseImage(ctx context.Context, id int64, imageURL string) error {
	// Главная картинка выставляется только один раз.
	query := `UPDATE houses SET index_image_url = ?, updated_at = ? WHERE id = ? AND index_image_url = ''`
	if _, err := db.ExecContext(ctx, query, imageURL, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update house image: %w", err)
	}
	return nil
}

func (db *DB) queryHouses(ctx context.Context, query string, args ...interface{}) ([]*models.House, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query houses: %w", err)
	}
	defer rows.Close()

	var houses []*models.House
	for rows.Next() {
		house, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan house: %w", err)
		}
		houses = append(houses, house)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read houses: %w", err)
	}
	return houses, nil
}

func scanHouse(row rowScanner) (*models.House, error) {
	var house models.House
	err := row.Scan(
		&house.ID, &house.UserID, &house.AreaID, &house.Title, &house.Price,
		&house.Address, &house.RoomCount, &house.Acreage, &house.Unit,
		&house.Capacity, &house.Beds, &house.Deposit, &house.MinDays,
		&house.MaxDays, &house.OrderCount, &house.IndexImageURL,
		&house.CreatedAt, &house.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &house, nil
}
