package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arenda/internal/models"
)

const dateLayout = "2006-01-02"

// HasConflict проверяет пересечение запрошенного интервала с существующими
// заказами жилья. Границы включительные: [b1,e1] и [b2,e2] пересекаются,
// когда b1 <= e2 и e1 >= b2. Заказы в терминальных статусах не учитываются.
func (db *DB) HasConflict(ctx context.Context, houseID int64, begin, end time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM orders
              WHERE house_id = ? AND begin_date <= ? AND end_date >= ?
              AND status NOT IN (?, ?)`
	var count int
	err := db.QueryRowContext(ctx, query, houseID,
		end.Format(dateLayout), begin.Format(dateLayout),
		models.StatusCanceled, models.StatusRejected).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count conflicting orders: %w", err)
	}
	return count > 0, nil
}

// ConflictingHouseIDs возвращает жильё, занятое в запрошенном окне.
// Поддерживаются три режима: обе границы, только начало, только конец.
// Если границы не заданы, фильтрация не применяется.
func (db *DB) ConflictingHouseIDs(ctx context.Context, begin, end *time.Time) ([]int64, error) {
	var (
		query string
		args  []interface{}
	)

	switch {
	case begin != nil && end != nil:
		query = `SELECT DISTINCT house_id FROM orders
                 WHERE begin_date <= ? AND end_date >= ? AND status NOT IN (?, ?)`
		args = []interface{}{end.Format(dateLayout), begin.Format(dateLayout),
			models.StatusCanceled, models.StatusRejected}
	case begin != nil:
		query = `SELECT DISTINCT house_id FROM orders
                 WHERE end_date >= ? AND status NOT IN (?, ?)`
		args = []interface{}{begin.Format(dateLayout), models.StatusCanceled, models.StatusRejected}
	case end != nil:
		query = `SELECT DISTINCT house_id FROM orders
                 WHERE begin_date <= ? AND status NOT IN (?, ?)`
		args = []interface{}{end.Format(dateLayout), models.StatusCanceled, models.StatusRejected}
	default:
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicting houses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan house id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conflicting houses: %w", err)
	}
	return ids, nil
}

// CreateOrderWithLock выполняет проверку конфликта и вставку заказа в одной
// транзакции. Производные поля (days, amount) считаются здесь же.
// Между проверкой и вставкой в рамках одного процесса нас защищает
// транзакция SQLite; между процессами — единственный писатель файла БД.
func (db *DB) CreateOrderWithLock(ctx context.Context, order *models.Order) error {
	if order.EndDate.Before(order.BeginDate) {
		return ErrInvalidRange
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Проверка конфликта внутри транзакции
	var count int
	queryCount := `SELECT COUNT(*) FROM orders
                   WHERE house_id = ? AND begin_date <= ? AND end_date >= ?
                   AND status NOT IN (?, ?)`
	err = tx.QueryRowContext(ctx, queryCount, order.HouseID,
		order.EndDate.Format(dateLayout), order.BeginDate.Format(dateLayout),
		models.StatusCanceled, models.StatusRejected).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check conflict in tx: %w", err)
	}
	if count > 0 {
		return ErrDateConflict
	}

	// 2. Производные поля
	order.Days = int64(order.EndDate.Sub(order.BeginDate).Hours()/24) + 1
	order.Amount = order.Days * order.HousePrice
	if order.Status == "" {
		order.Status = models.StatusWaitAccept
	}

	// 3. Вставка заказа
	now := time.Now()
	queryInsert := `INSERT INTO orders (
                user_id, house_id, begin_date, end_date, days, house_price,
                amount, status, comment, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, queryInsert,
		order.UserID,
		order.HouseID,
		order.BeginDate.Format(dateLayout),
		order.EndDate.Format(dateLayout),
		order.Days,
		order.HousePrice,
		order.Amount,
		order.Status,
		order.Comment,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	// 4. Счетчик заказов жилья
	if _, err := tx.ExecContext(ctx,
		`UPDATE houses SET order_count = order_count + 1, updated_at = ? WHERE id = ?`,
		now, order.HouseID); err != nil {
		return fmt.Errorf("failed to bump order count in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order tx: %w", err)
	}

	order.ID = id
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Version = 1
	return nil
}

func (db *DB) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT o.id, o.user_id, o.house_id, h.title, date(o.begin_date), date(o.end_date),
                     o.days, o.house_price, o.amount, o.status, o.comment,
                     o.created_at, o.updated_at, o.version
              FROM orders o LEFT JOIN houses h ON h.id = o.house_id
              WHERE o.id = ?`
	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (db *DB) GetUserOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `SELECT o.id, o.user_id, o.house_id, h.title, date(o.begin_date), date(o.end_date),
                     o.days, o.house_price, o.amount, o.status, o.comment,
                     o.created_at, o.updated_at, o.version
              FROM orders o LEFT JOIN houses h ON h.id = o.house_id
              WHERE o.user_id = ? ORDER BY o.created_at DESC`
	return db.queryOrders(ctx, query, userID)
}

// GetHostOrders возвращает заказы на жильё, принадлежащее пользователю.
func (db *DB) GetHostOrders(ctx context.Context, hostID int64) ([]*models.Order, error) {
	query := `SELECT o.id, o.user_id, o.house_id, h.title, date(o.begin_date), date(o.end_date),
                     o.days, o.house_price, o.amount, o.status, o.comment,
                     o.created_at, o.updated_at, o.version
              FROM orders o JOIN houses h ON h.id = o.house_id
              WHERE h.user_id = ? ORDER BY o.created_at DESC`
	return db.queryOrders(ctx, query, hostID)
}

func (db *DB) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order            models.Order
		title            sql.NullString
		beginStr, endStr string
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.HouseID, &title, &beginStr, &endStr,
		&order.Days, &order.HousePrice, &order.Amount, &order.Status, &order.Comment,
		&order.CreatedAt, &order.UpdatedAt, &order.Version,
	)
	if err != nil {
		return nil, err
	}
	order.HouseTitle = title.String

	if order.BeginDate, err = time.Parse(dateLayout, beginStr); err != nil {
		return nil, fmt.Errorf("failed to parse begin date %s: %w", beginStr, err)
	}
	if order.EndDate, err = time.Parse(dateLayout, endStr); err != nil {
		return nil, fmt.Errorf("failed to parse end date %s: %w", endStr, err)
	}
	return &order, nil
}

func (db *DB) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (db *DB) UpdateOrderStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE orders SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) UpdateOrderComment(ctx context.Context, id int64, comment string) error {
	query := `UPDATE orders SET comment = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, comment, models.StatusComplete, time.Now(), id, models.StatusWaitComment)
	if err != nil {
		return fmt.Errorf("failed to update order comment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
