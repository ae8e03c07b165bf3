package model

import "gorm.io/datatypes"

// BarModel 是日线缓存的持久化形态，code+date 唯一。
type BarModel struct {
	ID     int64   `gorm:"column:id;primaryKey"`
	Code   string  `gorm:"column:code;uniqueIndex:idx_bar_code_date,priority:1"`
	Date   int64   `gorm:"column:date;uniqueIndex:idx_bar_code_date,priority:2"` // Unix 秒，UTC 零点
	Open   float64 `gorm:"column:open"`
	High   float64 `gorm:"column:high"`
	Low    float64 `gorm:"column:low"`
	Close  float64 `gorm:"column:close"`
	Volume float64 `gorm:"column:volume"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
}

func (BarModel) TableName() string { return "bars" }

// DatasetModel 记录每个代码缓存的来源与区间，方便增量刷新。
type DatasetModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Code          string         `gorm:"column:code;uniqueIndex"`
	Source        string         `gorm:"column:source"`
	BarCount      int            `gorm:"column:bar_count"`
	FirstDate     int64          `gorm:"column:first_date"`
	LastDate      int64          `gorm:"column:last_date"`
	MetaJSON      datatypes.JSON `gorm:"column:meta_json;type:TEXT"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (DatasetModel) TableName() string { return "datasets" }
