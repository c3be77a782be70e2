// Package repository implements order persistence for PostgreSQL, MySQL and MongoDB.
// Order lines are stored as a JSON document next to the order row; the total is recomputed on load.
package repository

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/allisson/orders/internal/order/domain"
)

// itemRecord is the persisted form of an order line. Prices are kept as decimal strings.
type itemRecord struct {
	ProductID   string `json:"productId"   bson:"productId"`
	ProductName string `json:"productName" bson:"productName"`
	Quantity    int    `json:"quantity"    bson:"quantity"`
	UnitPrice   string `json:"unitPrice"   bson:"unitPrice"`
}

func toItemRecords(items []domain.OrderItem) []itemRecord {
	records := make([]itemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, itemRecord{
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
		})
	}
	return records
}

func fromItemRecords(records []itemRecord) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(records))
	for _, record := range records {
		price, err := decimal.NewFromString(record.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price %q: %w", record.UnitPrice, err)
		}
		items = append(items, domain.OrderItem{
			ProductID:   domain.ProductID(record.ProductID),
			ProductName: record.ProductName,
			Quantity:    record.Quantity,
			UnitPrice:   price,
		})
	}
	return items, nil
}

func marshalItems(items []domain.OrderItem) ([]byte, error) {
	data, err := json.Marshal(toItemRecords(items))
	if err != nil {
		return nil, fmt.Errorf("failed to encode order items: %w", err)
	}
	return data, nil
}

func unmarshalItems(data []byte) ([]domain.OrderItem, error) {
	var records []itemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	return fromItemRecords(records)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		id, customerID, status string
		items                  []byte
		order                  domain.Order
	)
	if err := row.Scan(&id, &customerID, &items, &status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}

	lines, err := unmarshalItems(items)
	if err != nil {
		return nil, err
	}

	return domain.RestoreOrder(
		domain.OrderID(id),
		domain.CustomerID(customerID),
		lines,
		domain.OrderStatus(status),
		order.CreatedAt.UTC(),
		order.UpdatedAt.UTC(),
	), nil
}
