package patients

// Category is one of the emotional states the dashboard charts.
type Category string

const (
	CategoryPositive Category = "positive"
	CategoryNegative Category = "negative"
	CategoryNeutral  Category = "neutral"
	CategoryAnxiety  Category = "anxiety"
)

// Categories lists the charted categories in column order.
var Categories = []Category{CategoryPositive, CategoryAnxiety, CategoryNegative, CategoryNeutral}

var categoryLabels = map[Category]string{
	CategoryPositive: "Positif",
	CategoryNegative: "Négatif",
	CategoryNeutral:  "Neutre",
	CategoryAnxiety:  "Anxiété",
}

// Label returns the display label for a raw category key, or the key itself
// when it is not one of the known categories.
func Label(key string) string {
	if l, ok := categoryLabels[Category(key)]; ok {
		return l
	}
	return key
}

// Probabilities maps a category name to a probability. Keys are whatever the
// analysis model emits; use Of to read a known category.
type Probabilities map[string]float64

// Of returns the probability for c, 0 when absent.
func (p Probabilities) Of(c Category) float64 {
	return p[string(c)]
}
