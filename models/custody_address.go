// models/custody_address.go
package models

import "time"

// CustodyAddress mirrors the custody address the social provider reports for a fid.
// Rows are upserted on every successful lookup and read back when the provider is down.
type CustodyAddress struct {
	FID        int64     `gorm:"column:fid;primaryKey;autoIncrement:false" json:"fid"`
	Address    string    `gorm:"type:varchar(64);not null;index" json:"address"`
	ResolvedAt time.Time `gorm:"not null" json:"resolvedAt"`
}
