package model

// Order is one row of `OrderTable` joined with its food entry.  Rows have
// no identity of their own; a seat's orders are cancelled together.
type Order struct {
    FoodCode string `json:"food_code"`
    FoodName string `json:"food_name"`
    Price    int    `json:"price"`
    Seat     int    `json:"seat"`
}
