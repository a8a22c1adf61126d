package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind names one dimension table.
type Kind string

const (
	KindDate     Kind = "date"
	KindProduct  Kind = "product"
	KindCustomer Kind = "customer"
	KindStore    Kind = "store"
	KindSource   Kind = "source"
)

// DateDim attributes are derived from the calendar date itself, never
// taken from input records.
type DateDim struct {
	ID        snowflake.ID   `gorm:"column:date_id;primaryKey"`
	Date      datatypes.Date `gorm:"column:date;uniqueIndex;not null"`
	Year      int            `gorm:"not null"`
	Quarter   int            `gorm:"not null"`
	Month     int            `gorm:"not null"`
	Week      int            `gorm:"not null"`
	Day       int            `gorm:"not null"`
	DayOfWeek int            `gorm:"not null"`
	DayName   string         `gorm:"not null"`
	IsWeekend bool           `gorm:"not null"`
}

func (DateDim) TableName() string { return "dim_date" }

type ProductDim struct {
	ID        snowflake.ID `gorm:"column:product_id;primaryKey"`
	SKU       string       `gorm:"column:product_sku;uniqueIndex;not null"`
	Name      string       `gorm:"column:product_name;not null"`
	Category  string       `gorm:"column:category"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (ProductDim) TableName() string { return "dim_product" }

type CustomerDim struct {
	ID         snowflake.ID `gorm:"column:customer_id;primaryKey"`
	ExternalID string       `gorm:"column:customer_external_id;uniqueIndex;not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (CustomerDim) TableName() string { return "dim_customer" }

type StoreDim struct {
	ID         snowflake.ID `gorm:"column:store_id;primaryKey"`
	ExternalID string       `gorm:"column:store_external_id;uniqueIndex;not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (StoreDim) TableName() string { return "dim_store" }

type SourceDim struct {
	ID        snowflake.ID `gorm:"column:source_id;primaryKey"`
	Code      string       `gorm:"column:source_code;uniqueIndex;not null"`
	Name      string       `gorm:"column:source_name"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (SourceDim) TableName() string { return "dim_source" }

// ResolvedKeys carries the surrogate keys for one canonical record.
// CustomerID and StoreID stay nil when the record carried no value for
// the optional dimension; that is a valid resolved state.
type ResolvedKeys struct {
	DateID     snowflake.ID
	ProductID  snowflake.ID
	SourceID   snowflake.ID
	CustomerID *snowflake.ID
	StoreID    *snowflake.ID
}
