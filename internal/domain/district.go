package domain

// District groups schools run by the same operator, such as a lower and an
// upper school sharing one website.
type District struct {
	ID         int64
	Name       string
	WebsiteURL string
}
