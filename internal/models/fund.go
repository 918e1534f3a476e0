package models

import "time"

// FundAccount is a capital pool that trades can be assigned to.
//
// Balance is a running total maintained by the journal service. It is not
// derived from trades unless an explicit reconcile is requested.
type FundAccount struct {
	ID             string    `json:"id" dynamodbav:"id"`
	OwnerID        string    `json:"owner_id" dynamodbav:"owner_id"`
	Name           string    `json:"name" dynamodbav:"name"`
	InitialBalance float64   `json:"initial_balance" dynamodbav:"initial_balance"`
	Balance        float64   `json:"balance" dynamodbav:"balance"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" dynamodbav:"updated_at"`
}
