// Package store 实现信号的 PostgreSQL 持久化。
// 启动时确保表结构存在；写入失败只影响持久化，不中断信号链路。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id            TEXT PRIMARY KEY,
	tag           TEXT NOT NULL,
	class         INT NOT NULL,
	side          INT NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	stop_loss     DOUBLE PRECISION NOT NULL,
	take_profit   DOUBLE PRECISION NOT NULL,
	score         DOUBLE PRECISION NOT NULL,
	score_detail  JSONB,
	reason        TEXT,
	accepted      BOOLEAN NOT NULL,
	confirmed     BOOLEAN NOT NULL,
	signal_time   TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_signals_time ON signals (signal_time DESC);
`

// signalRow signals 表行
type signalRow struct {
	ID          string    `db:"id"`
	Tag         string    `db:"tag"`
	Class       int       `db:"class"`
	Side        int       `db:"side"`
	Price       float64   `db:"price"`
	StopLoss    float64   `db:"stop_loss"`
	TakeProfit  float64   `db:"take_profit"`
	Score       float64   `db:"score"`
	ScoreDetail []byte    `db:"score_detail"`
	Reason      string    `db:"reason"`
	Accepted    bool      `db:"accepted"`
	Confirmed   bool      `db:"confirmed"`
	SignalTime  time.Time `db:"signal_time"`
}

// Store 信号仓储
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open 连接数据库并确保表结构存在
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	logger.Info("信号仓储已连接")
	return &Store{db: db, logger: logger.Named("store")}, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSignal 写入一条信号；主键冲突时更新确认状态
func (s *Store) SaveSignal(ctx context.Context, sig *model.Signal) error {
	detail, err := json.Marshal(sig.ScoreDetail)
	if err != nil {
		return fmt.Errorf("序列化评分明细失败: %w", err)
	}

	row := signalRow{
		ID:          sig.ID,
		Tag:         sig.Tag(),
		Class:       int(sig.Class),
		Side:        int(sig.Side),
		Price:       sig.Price,
		StopLoss:    sig.StopLoss,
		TakeProfit:  sig.TakeProfit,
		Score:       sig.Score,
		ScoreDetail: detail,
		Reason:      sig.Reason,
		Accepted:    sig.Accepted,
		Confirmed:   sig.Confirmed,
		SignalTime:  sig.Time,
	}

	const query = `
	INSERT INTO signals (
		id, tag, class, side, price, stop_loss, take_profit,
		score, score_detail, reason, accepted, confirmed, signal_time
	) VALUES (
		:id, :tag, :class, :side, :price, :stop_loss, :take_profit,
		:score, :score_detail, :reason, :accepted, :confirmed, :signal_time
	)
	ON CONFLICT (id) DO UPDATE SET
		accepted = EXCLUDED.accepted,
		confirmed = EXCLUDED.confirmed
	`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("写入信号失败: %w", err)
	}
	return nil
}

// UpdateConfirmed 回写信号确认状态
func (s *Store) UpdateConfirmed(ctx context.Context, id string, confirmed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET confirmed = $1 WHERE id = $2`, confirmed, id)
	if err != nil {
		return fmt.Errorf("更新确认状态失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("信号不存在: %s", id)
	}
	return nil
}

// RecentSignals 按时间倒序读取最近的信号
func (s *Store) RecentSignals(ctx context.Context, limit int) ([]*model.Signal, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []signalRow
	err := s.db.SelectContext(ctx, &rows, `
	SELECT id, tag, class, side, price, stop_loss, take_profit,
	       score, score_detail, reason, accepted, confirmed, signal_time
	FROM signals
	ORDER BY signal_time DESC
	LIMIT $1`, limit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("查询信号失败: %w", err)
	}

	out := make([]*model.Signal, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		sig := &model.Signal{
			ID:         r.ID,
			Class:      model.SignalClass(r.Class),
			Side:       model.Side(r.Side),
			Price:      r.Price,
			StopLoss:   r.StopLoss,
			TakeProfit: r.TakeProfit,
			Score:      r.Score,
			Reason:     r.Reason,
			Accepted:   r.Accepted,
			Confirmed:  r.Confirmed,
			Time:       r.SignalTime,
		}
		if len(r.ScoreDetail) > 0 {
			if err := json.Unmarshal(r.ScoreDetail, &sig.ScoreDetail); err != nil {
				s.logger.Warn("评分明细解析失败", zap.String("id", r.ID), zap.Error(err))
			}
		}
		out = append(out, sig)
	}
	return out, nil
}
