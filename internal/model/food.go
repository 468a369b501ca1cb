package model

// Food is a catalog entry that can be ordered to a seat.
type Food struct {
    Code     string `json:"code"`      // Food.FoodCode
    Name     string `json:"name"`      // Food.FoodName
    Price    int    `json:"price"`     // Food.FoodPrice, in won
    ImageURL string `json:"image_url"` // Food.ImageURL
}
