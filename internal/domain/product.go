package domain

const (
	// MinStoreID and MaxStoreID bound valid store numbers.
	MinStoreID = 1
	MaxStoreID = 9999

	// DefaultCategory is assigned to products whose group has no name.
	DefaultCategory = "General"
)

// ExtractedProduct is one product read off a shelf by the vision model.
// Price is nil when no price was reported; zero is a real price.
type ExtractedProduct struct {
	Name         string   `json:"name"`
	Price        *float64 `json:"price"`
	Presentation string   `json:"presentation,omitempty"`
	Category     string   `json:"category,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// CatalogMatch is a candidate returned by the vector index. Price is nil
// when the catalog row carries no price.
type CatalogMatch struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Price        *float64 `json:"price"`
	StoreID      string   `json:"storeId"`
	Code         string   `json:"code,omitempty"`
	Category     string   `json:"category,omitempty"`
	Presentation string   `json:"presentation,omitempty"`
	Score        float64  `json:"score"`
}

// CatalogEntry is a catalog row to be indexed for a store.
type CatalogEntry struct {
	Name         string   `json:"name" binding:"required"`
	Price        *float64 `json:"price"`
	StoreID      string   `json:"storeId" binding:"required"`
	Code         string   `json:"code,omitempty"`
	Category     string   `json:"category,omitempty"`
	Presentation string   `json:"presentation,omitempty"`
	FileID       string   `json:"fileId,omitempty"`
}

// CatalogPoint is an entry paired with its embedding.
type CatalogPoint struct {
	ID     string
	Vector []float32
	Entry  CatalogEntry
}

// StoreQuery is the parsed intent of a free-text message.
// StoreID is zero when absent; SearchPhrase is empty when absent.
type StoreQuery struct {
	StoreID      int    `json:"storeId,omitempty"`
	SearchPhrase string `json:"searchPhrase,omitempty"`
}

// HasStore reports whether a store number was recognized.
func (q StoreQuery) HasStore() bool {
	return ValidStoreID(q.StoreID)
}

// ValidStoreID reports whether id is within the accepted store range.
func ValidStoreID(id int) bool {
	return id >= MinStoreID && id <= MaxStoreID
}
