package model

// Plan is a priced bundle of usage time (`Subscription` table).
type Plan struct {
    Key    string `json:"key"`    // Subscription.SubscriptionKey
    Amount int    `json:"amount"` // Subscription.SubscriptionAmount, price in won
    Hours  int    `json:"hours"`  // Subscription.SubscriptionHours
}
