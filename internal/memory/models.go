package memory

import "gorm.io/datatypes"

type signalBatchModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	TraceID    string         `gorm:"column:trace_id;index"`
	Symbol     string         `gorm:"column:symbol"`
	Action     string         `gorm:"column:action"`
	Confidence float64        `gorm:"column:confidence"`
	Reason     string         `gorm:"column:reason"`
	Halted     int            `gorm:"column:halted"`
	Degraded   int            `gorm:"column:degraded"`
	Signals    datatypes.JSON `gorm:"column:signals"`
	CreatedAt  int64          `gorm:"column:created_at"`
}

func (signalBatchModel) TableName() string { return "signal_batches" }

type tradeModel struct {
	ID           int64   `gorm:"column:id;primaryKey"`
	TraceID      string  `gorm:"column:trace_id;index"`
	Symbol       string  `gorm:"column:symbol"`
	Side         string  `gorm:"column:side"`
	Quantity     float64 `gorm:"column:quantity"`
	Price        float64 `gorm:"column:price"`
	NotionalUSD  float64 `gorm:"column:notional_usd"`
	ModelVersion string  `gorm:"column:model_version"`
	CreatedAt    int64   `gorm:"column:created_at"`
}

func (tradeModel) TableName() string { return "trades" }

type systemEventModel struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	Kind      string         `gorm:"column:kind;index"`
	Message   string         `gorm:"column:message"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt int64          `gorm:"column:created_at"`
}

func (systemEventModel) TableName() string { return "system_events" }
