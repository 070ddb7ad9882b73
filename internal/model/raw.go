package model

// RemoteRecord is the raw product shape returned by the upstream
// affiliate API. Consumed only by the normalizer.
type RemoteRecord struct {
	ProductID                   string  `json:"product_id"`
	ProductName                 string  `json:"product_name"`
	ProductPicture              string  `json:"product_picture"`
	ProductOtherPictures        string  `json:"product_other_pictures"`
	ProductPrice                float64 `json:"product_price"`
	ProductDiscounted           float64 `json:"product_discounted"`
	ProductDiscountedPercentage int     `json:"product_discounted_percentage"`
	ProductCurrency             string  `json:"product_currency"`
	ProductLink                 string  `json:"product_link"`
	TrackingLink                string  `json:"tracking_link"`
	CategoryID                  string  `json:"category_id"`
	CategoryName                string  `json:"category_name"`
	AdvertiserID                string  `json:"advertiser_id"`
	ShopID                      string  `json:"shop_id"`
}

// RemoteMeta is the pagination envelope of the upstream API.
type RemoteMeta struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Page  int `json:"page"`
}

// RemoteEnvelope is the full upstream response shape.
type RemoteEnvelope struct {
	Meta RemoteMeta     `json:"meta"`
	Data []RemoteRecord `json:"data"`
}

// TabularRow is one parsed row of an uploaded delimited source.
// Column values are kept as raw strings; the normalizer owns all
// defensive parsing.
type TabularRow struct {
	ID            string
	URL           string
	Name          string
	Price         string
	PriceMin      string
	OriginalPrice string
	Discount      string
	ShopName      string
	ShopLocation  string
	Rating        string
	RatingCount   string
	SoldCount     string
	SoldCountText string
	Image         string
	Images        string
	Category      string
	ShopID        string
	Variations    string
}
