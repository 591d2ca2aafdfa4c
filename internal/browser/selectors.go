package browser

// Selectors locates the parts of the marketplace pages the session drives.
// All values are CSS selectors evaluated with chromedp.ByQuery and goquery.
type Selectors struct {
	SearchResults string
	ResultCard    string
	CardLink      string
	CardName      string
	CardHeadline  string

	SlotPicker string
	DayGroup   string
	SlotButton string

	BookingForm  string
	NameInput    string
	EmailInput   string
	PhoneInput   string
	NotesInput   string
	SubmitButton string
	Confirmation string
}

// DefaultSelectors matches the marketplace markup as of the current site.
var DefaultSelectors = Selectors{
	SearchResults: `[data-testid="search-results"]`,
	ResultCard:    `[data-testid="expert-card"]`,
	CardLink:      `a[href]`,
	CardName:      `[data-testid="expert-name"]`,
	CardHeadline:  `[data-testid="expert-headline"]`,

	SlotPicker: `[data-testid="slot-picker"]`,
	DayGroup:   `[data-date]`,
	SlotButton: `button[data-slot]`,

	BookingForm:  `form[data-testid="booking-form"]`,
	NameInput:    `form[data-testid="booking-form"] input[name="name"]`,
	EmailInput:   `form[data-testid="booking-form"] input[name="email"]`,
	PhoneInput:   `form[data-testid="booking-form"] input[name="phone"]`,
	NotesInput:   `form[data-testid="booking-form"] textarea[name="notes"]`,
	SubmitButton: `form[data-testid="booking-form"] button[type="submit"]`,
	Confirmation: `[data-testid="booking-confirmation"]`,
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.SearchResults, d.SearchResults)
	fill(&s.ResultCard, d.ResultCard)
	fill(&s.CardLink, d.CardLink)
	fill(&s.CardName, d.CardName)
	fill(&s.CardHeadline, d.CardHeadline)
	fill(&s.SlotPicker, d.SlotPicker)
	fill(&s.DayGroup, d.DayGroup)
	fill(&s.SlotButton, d.SlotButton)
	fill(&s.BookingForm, d.BookingForm)
	fill(&s.NameInput, d.NameInput)
	fill(&s.EmailInput, d.EmailInput)
	fill(&s.PhoneInput, d.PhoneInput)
	fill(&s.NotesInput, d.NotesInput)
	fill(&s.SubmitButton, d.SubmitButton)
	fill(&s.Confirmation, d.Confirmation)
	return s
}
