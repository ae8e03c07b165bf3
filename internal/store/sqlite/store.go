package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"kosim/internal/market"
	"kosim/internal/store"
	"kosim/internal/store/model"
)

// SqliteStore 用 gorm+sqlite 落地日线缓存。
type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	if err := db.AutoMigrate(&model.BarModel{}, &model.DatasetModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) SaveBars(ctx context.Context, code, source string, bars market.Bars) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("code 不能为空")
	}
	if len(bars) == 0 {
		return nil
	}
	now := time.Now().Unix()
	rows := make([]model.BarModel, 0, len(bars))
	first, last := bars[0].Date.Unix(), bars[0].Date.Unix()
	for _, b := range bars {
		d := b.Date.Unix()
		if d < first {
			first = d
		}
		if d > last {
			last = d
		}
		rows = append(rows, model.BarModel{
			Code: code, Date: d,
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
			CreatedAtUnix: now,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}, {Name: "date"}},
			UpdateAll: true,
		}).CreateInBatches(rows, 200).Error; err != nil {
			return err
		}
		meta, _ := json.Marshal(map[string]string{"source": source})
		var count int64
		if err := tx.Model(&model.BarModel{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return err
		}
		ds := model.DatasetModel{
			Code: code, Source: source,
			BarCount: int(count), FirstDate: first, LastDate: last,
			MetaJSON: datatypes.JSON(meta), UpdatedAtUnix: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			UpdateAll: true,
		}).Create(&ds).Error
	})
}

func (s *SqliteStore) LoadBars(ctx context.Context, code string, start, end int64) (market.Bars, error) {
	q := s.db.WithContext(ctx).Model(&model.BarModel{}).Where("code = ?", code)
	if start > 0 {
		q = q.Where("date >= ?", start)
	}
	if end > 0 {
		q = q.Where("date <= ?", end)
	}
	var rows []model.BarModel
	if err := q.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	bars := make(market.Bars, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, market.Bar{
			Date:   time.Unix(r.Date, 0).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, nil
}

func (s *SqliteStore) Datasets(ctx context.Context) ([]store.Dataset, error) {
	var rows []model.DatasetModel
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.Dataset, 0, len(rows))
	for _, r := range rows {
		meta := map[string]string{}
		if len(r.MetaJSON) > 0 {
			_ = json.Unmarshal(r.MetaJSON, &meta)
		}
		out = append(out, store.Dataset{
			Code: r.Code, Source: r.Source,
			BarCount: r.BarCount, FirstDate: r.FirstDate, LastDate: r.LastDate,
			Meta: meta,
		})
	}
	return out, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
