// Package sqlstore implements the store interfaces on SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS robots (
	id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	ticker TEXT NOT NULL,
	name TEXT NOT NULL,
	budget TEXT NOT NULL,
	buy_price TEXT NOT NULL,
	sell_price TEXT NOT NULL,
	place_buy_price TEXT,
	place_sell_price TEXT,
	min_shares INTEGER NOT NULL,
	max_shares INTEGER NOT NULL,
	initial_min_shares INTEGER NOT NULL,
	initial_max_shares INTEGER NOT NULL,
	start_shares INTEGER NOT NULL,
	lot INTEGER NOT NULL,
	shares INTEGER NOT NULL,
	enabled BOOLEAN NOT NULL,
	removed BOOLEAN NOT NULL,
	strategy TEXT NOT NULL,
	stop_after_sell BOOLEAN NOT NULL,
	stop_after_buy BOOLEAN NOT NULL,
	profit_capitalization BOOLEAN NOT NULL,
	tags TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_robots_ticker ON robots (ticker);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	broker_order_id TEXT NOT NULL UNIQUE,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	status TEXT NOT NULL,
	requested_lots INTEGER NOT NULL,
	executed_lots INTEGER NOT NULL,
	requested_price TEXT NOT NULL,
	price TEXT NOT NULL,
	commission TEXT NOT NULL,
	payment TEXT NOT NULL,
	currency TEXT NOT NULL,
	trades TEXT NOT NULL,
	is_synced BOOLEAN NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at);

CREATE TABLE IF NOT EXISTS order_collections (
	order_id TEXT NOT NULL,
	robot_id TEXT NOT NULL,
	PRIMARY KEY (order_id, robot_id)
);
CREATE INDEX IF NOT EXISTS idx_order_collections_robot ON order_collections (robot_id);

CREATE TABLE IF NOT EXISTS run_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	is_running BOOLEAN NOT NULL,
	updated_at INTEGER NOT NULL
);
`

var robotColumns = []string{
	"id", "instrument", "ticker", "name", "budget", "buy_price", "sell_price",
	"place_buy_price", "place_sell_price", "min_shares", "max_shares",
	"initial_min_shares", "initial_max_shares", "start_shares", "lot", "shares",
	"enabled", "removed", "strategy", "stop_after_sell", "stop_after_buy",
	"profit_capitalization", "tags", "created_at", "updated_at",
}

var orderColumns = []string{
	"id", "broker_order_id", "instrument", "side", "status", "requested_lots",
	"executed_lots", "requested_price", "price", "commission", "payment",
	"currency", "trades", "is_synced", "created_at", "updated_at",
}

// Store is a SQLite-backed store. The connection pool is limited to one
// connection so writes are serialized.
type Store struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string, log *logger.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to open sqlite database", err)
	}

	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: log.Named("sqlstore"),
	}

	if err := s.Initialize(context.Background()); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

// Initialize creates the tables if they do not exist.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to create tables", err)
	}

	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}

func toNullDecimal(o optional.Option[decimal.Decimal]) decimal.NullDecimal {
	if o.IsNone() {
		return decimal.NullDecimal{Decimal: decimal.Zero, Valid: false}
	}

	return decimal.NullDecimal{Decimal: o.Unwrap(), Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) optional.Option[decimal.Decimal] {
	if !d.Valid {
		return optional.None[decimal.Decimal]()
	}

	return optional.Some(d.Decimal)
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeQueryFailed, "failed to encode column", err)
	}

	return string(b), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Robots

func robotValues(r *types.Robot) ([]any, error) {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	tagsJSON, err := marshalJSON(tags)
	if err != nil {
		return nil, err
	}

	return []any{
		r.ID, r.Instrument, r.Ticker, r.Name, r.Budget, r.BuyPrice, r.SellPrice,
		toNullDecimal(r.PlaceBuyPrice), toNullDecimal(r.PlaceSellPrice), r.MinShares, r.MaxShares,
		r.InitialMinShares, r.InitialMaxShares, r.StartShares, r.Lot, r.Shares,
		r.Enabled, r.Removed, string(r.Strategy), r.StopAfterSell, r.StopAfterBuy,
		r.ProfitCapitalization, tagsJSON, toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRobot(row rowScanner) (types.Robot, error) {
	var (
		r                    types.Robot
		placeBuy, placeSell  decimal.NullDecimal
		strategy, tags       string
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&r.ID, &r.Instrument, &r.Ticker, &r.Name, &r.Budget, &r.BuyPrice, &r.SellPrice,
		&placeBuy, &placeSell, &r.MinShares, &r.MaxShares,
		&r.InitialMinShares, &r.InitialMaxShares, &r.StartShares, &r.Lot, &r.Shares,
		&r.Enabled, &r.Removed, &strategy, &r.StopAfterSell, &r.StopAfterBuy,
		&r.ProfitCapitalization, &tags, &createdAt, &updatedAt,
	)
	if err != nil {
		return types.Robot{}, err
	}

	r.PlaceBuyPrice = fromNullDecimal(placeBuy)
	r.PlaceSellPrice = fromNullDecimal(placeSell)
	r.Strategy = types.Strategy(strategy)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return types.Robot{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode robot tags", err)
	}

	return r, nil
}

func (s *Store) CreateRobot(ctx context.Context, robot *types.Robot) error {
	values, err := robotValues(robot)
	if err != nil {
		return err
	}

	_, err = s.sq.
		Insert("robots").
		Columns(robotColumns...).
		Values(values...).
		RunWith(s.db).
		ExecContext(ctx)
	if isUniqueViolation(err) {
		return errors.Newf(errors.ErrCodeInvalidRobot, "robot already exists: %s", robot.ID)
	}

	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert robot", err)
	}

	return nil
}

func (s *Store) SaveRobot(ctx context.Context, robot *types.Robot) error {
	values, err := robotValues(robot)
	if err != nil {
		return err
	}

	update := s.sq.Update("robots").Where(squirrel.Eq{"id": robot.ID})
	for i, col := range robotColumns[1:] {
		update = update.Set(col, values[i+1])
	}

	res, err := update.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to update robot", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf(errors.ErrCodeRobotNotFound, "robot not found: %s", robot.ID)
	}

	return nil
}

func (s *Store) GetRobot(ctx context.Context, id string) (types.Robot, error) {
	row := s.sq.
		Select(robotColumns...).
		From("robots").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db).
		QueryRowContext(ctx)

	robot, err := scanRobot(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.Robot{}, errors.Newf(errors.ErrCodeRobotNotFound, "robot not found: %s", id)
	}

	if err != nil {
		return types.Robot{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to get robot", err)
	}

	return robot, nil
}

func (s *Store) ListRobots(ctx context.Context, filter store.RobotFilter) ([]types.Robot, error) {
	query := s.sq.
		Select(robotColumns...).
		From("robots").
		OrderBy("created_at", "id")

	if !filter.IncludeRemoved {
		query = query.Where(squirrel.Eq{"removed": false})
	}

	if filter.Instrument.IsSome() {
		query = query.Where(squirrel.Eq{"instrument": filter.Instrument.Unwrap()})
	}

	if filter.Ticker.IsSome() {
		query = query.Where(squirrel.Eq{"ticker": filter.Ticker.Unwrap()})
	}

	if filter.Enabled.IsSome() {
		query = query.Where(squirrel.Eq{"enabled": filter.Enabled.Unwrap()})
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list robots", err)
	}
	defer rows.Close()

	robots := make([]types.Robot, 0)

	for rows.Next() {
		robot, err := scanRobot(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan robot", err)
		}

		// tags live in a JSON column and are matched here
		if filter.Matches(robot) {
			robots = append(robots, robot)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating robots", err)
	}

	return robots, nil
}

// Orders

func orderValues(o *types.Order) ([]any, error) {
	trades := o.Trades
	if trades == nil {
		trades = []types.Trade{}
	}

	tradesJSON, err := marshalJSON(trades)
	if err != nil {
		return nil, err
	}

	return []any{
		o.ID, o.BrokerOrderID, o.Instrument, string(o.Side), string(o.Status), o.RequestedLots,
		o.ExecutedLots, o.RequestedPrice, o.Price, o.Commission, o.Payment,
		o.Currency, tradesJSON, o.IsSynced, toMillis(o.CreatedAt), toMillis(o.UpdatedAt),
	}, nil
}

func scanOrder(row rowScanner) (types.Order, error) {
	var (
		o                    types.Order
		side, status, trades string
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&o.ID, &o.BrokerOrderID, &o.Instrument, &side, &status, &o.RequestedLots,
		&o.ExecutedLots, &o.RequestedPrice, &o.Price, &o.Commission, &o.Payment,
		&o.Currency, &trades, &o.IsSynced, &createdAt, &updatedAt,
	)
	if err != nil {
		return types.Order{}, err
	}

	o.Side = types.Side(side)
	o.Status = types.OrderStatus(status)
	o.CreatedAt = fromMillis(createdAt)
	o.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(trades), &o.Trades); err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode order trades", err)
	}

	return o, nil
}

func (s *Store) writeCollections(ctx context.Context, tx *sql.Tx, order *types.Order) error {
	_, err := s.sq.
		Delete("order_collections").
		Where(squirrel.Eq{"order_id": order.ID}).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to clear order collections", err)
	}

	if len(order.Collections) == 0 {
		return nil
	}

	insert := s.sq.Insert("order_collections").Columns("order_id", "robot_id")
	for _, robotID := range order.Collections {
		insert = insert.Values(order.ID, robotID)
	}

	if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert order collections", err)
	}

	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order *types.Order) error {
	values, err := orderValues(order)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = s.sq.
		Insert("orders").
		Columns(orderColumns...).
		Values(values...).
		RunWith(tx).
		ExecContext(ctx)
	if isUniqueViolation(err) {
		return errors.Newf(errors.ErrCodeInvalidOrder, "order already recorded: %s", order.BrokerOrderID)
	}

	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert order", err)
	}

	if err := s.writeCollections(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit order", err)
	}

	return nil
}

func (s *Store) SaveOrder(ctx context.Context, order *types.Order) error {
	values, err := orderValues(order)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	update := s.sq.Update("orders").Where(squirrel.Eq{"id": order.ID})
	for i, col := range orderColumns[1:] {
		update = update.Set(col, values[i+1])
	}

	res, err := update.RunWith(tx).ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to update order", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", order.ID)
	}

	if err := s.writeCollections(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit order", err)
	}

	return nil
}

func (s *Store) getOrderWhere(ctx context.Context, where squirrel.Eq, notFound string) (types.Order, error) {
	row := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(where).
		RunWith(s.db).
		QueryRowContext(ctx)

	order, err := scanOrder(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.Order{}, errors.New(errors.ErrCodeOrderNotFound, notFound)
	}

	if err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to get order", err)
	}

	orders := []types.Order{order}
	if err := s.loadCollections(ctx, orders); err != nil {
		return types.Order{}, err
	}

	return orders[0], nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (types.Order, error) {
	return s.getOrderWhere(ctx, squirrel.Eq{"id": id}, "order not found: "+id)
}

func (s *Store) FindOrderByBrokerID(ctx context.Context, brokerOrderID string) (types.Order, error) {
	return s.getOrderWhere(ctx, squirrel.Eq{"broker_order_id": brokerOrderID}, "order not found for broker id: "+brokerOrderID)
}

func (s *Store) loadCollections(ctx context.Context, orders []types.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))

	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
		orders[i].Collections = []string{}
	}

	rows, err := s.sq.
		Select("order_id", "robot_id").
		From("order_collections").
		Where(squirrel.Eq{"order_id": ids}).
		OrderBy("order_id", "robot_id").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to load order collections", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID, robotID string
		if err := rows.Scan(&orderID, &robotID); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan order collection", err)
		}

		i := index[orderID]
		orders[i].Collections = append(orders[i].Collections, robotID)
	}

	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "error iterating order collections", err)
	}

	return nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]types.Order, error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at", "id")

	if filter.RobotID.IsSome() {
		query = query.Where("id IN (SELECT order_id FROM order_collections WHERE robot_id = ?)", filter.RobotID.Unwrap())
	}

	if filter.Instrument.IsSome() {
		query = query.Where(squirrel.Eq{"instrument": filter.Instrument.Unwrap()})
	}

	if filter.Side.IsSome() {
		query = query.Where(squirrel.Eq{"side": string(filter.Side.Unwrap())})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}

		query = query.Where(squirrel.Eq{"status": statuses})
	}

	if filter.IsSynced.IsSome() {
		query = query.Where(squirrel.Eq{"is_synced": filter.IsSynced.Unwrap()})
	}

	if filter.From.IsSome() {
		query = query.Where(squirrel.GtOrEq{"created_at": filter.From.Unwrap().UnixMilli()})
	}

	if filter.To.IsSome() {
		query = query.Where(squirrel.Lt{"created_at": filter.To.Unwrap().UnixMilli()})
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list orders", err)
	}

	orders := make([]types.Order, 0)

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()

			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan order", err)
		}

		orders = append(orders, order)
	}

	err = rows.Err()
	rows.Close()

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating orders", err)
	}

	// the single connection must be released before collections are read
	if err := s.loadCollections(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// Run state

func (s *Store) GetRunState(ctx context.Context) (types.RunState, error) {
	var (
		state     types.RunState
		updatedAt int64
	)

	err := s.sq.
		Select("is_running", "updated_at").
		From("run_state").
		Where(squirrel.Eq{"id": 1}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&state.IsRunning, &updatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.RunState{}, errors.New(errors.ErrCodeRunStateNotFound, "run state not found")
	}

	if err != nil {
		return types.RunState{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to get run state", err)
	}

	state.UpdatedAt = fromMillis(updatedAt)

	return state, nil
}

func (s *Store) SaveRunState(ctx context.Context, state types.RunState) error {
	_, err := s.sq.
		Insert("run_state").
		Columns("id", "is_running", "updated_at").
		Values(1, state.IsRunning, toMillis(state.UpdatedAt)).
		Suffix("ON CONFLICT (id) DO UPDATE SET is_running = excluded.is_running, updated_at = excluded.updated_at").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		s.logger.Error("failed to save run state", zap.Error(err))

		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to save run state", err)
	}

	return nil
}

var (
	_ store.RobotRepository = (*Store)(nil)
	_ store.OrderRepository = (*Store)(nil)
	_ store.StateRepository = (*Store)(nil)
)
