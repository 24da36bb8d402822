package model

// Kind identifies which family of content page is being visited.
// The zero value is KindIndex.
//
// Design decision: We keep Kind as a closed iota enum and hide the payload
// behind PageType accessors because:
//  1. The payload type is fully determined by the kind
//  2. Handlers switch on Kind without type assertions
//  3. No code outside this package can build a mismatched pair
type Kind int

const (
	// KindIndex is a listing page that links to other pages. It has no payload.
	KindIndex Kind = iota

	// KindNews is a news article page carrying NewsData.
	KindNews

	// KindPerson is a person profile page carrying PersonData.
	KindPerson

	// KindReport is a report page carrying ReportData.
	KindReport
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "index"
	case KindNews:
		return "news"
	case KindPerson:
		return "person"
	case KindReport:
		return "report"
	default:
		return "unknown"
	}
}

// NewsData is the auxiliary payload of a news page.
type NewsData struct {
	// Headline is an optional headline captured from the linking page.
	Headline string `json:"headline,omitempty"`
}

// PersonData is the auxiliary payload of a person page.
type PersonData struct {
	// Name is an optional display name captured from the linking page.
	Name string `json:"name,omitempty"`
}

// ReportData is the auxiliary payload of a report page.
type ReportData struct {
	// Title is an optional report title captured from the linking page.
	Title string `json:"title,omitempty"`
}

// PageType describes why a page is being visited.
// It is either Index (no payload) or a content page whose payload type is
// determined by its Kind. A PageType is created when a visit is scheduled
// and is read-only afterwards.
type PageType struct {
	kind   Kind
	news   *NewsData
	person *PersonData
	report *ReportData
}

// Index returns the classification of a listing page.
func Index() PageType {
	return PageType{kind: KindIndex}
}

// News returns a news classification with an empty payload.
func News() PageType {
	return NewsWith(NewsData{})
}

// NewsWith returns a news classification carrying data.
func NewsWith(data NewsData) PageType {
	return PageType{kind: KindNews, news: &data}
}

// Person returns a person classification with an empty payload.
func Person() PageType {
	return PersonWith(PersonData{})
}

// PersonWith returns a person classification carrying data.
func PersonWith(data PersonData) PageType {
	return PageType{kind: KindPerson, person: &data}
}

// Report returns a report classification with an empty payload.
func Report() PageType {
	return ReportWith(ReportData{})
}

// ReportWith returns a report classification carrying data.
func ReportWith(data ReportData) PageType {
	return PageType{kind: KindReport, report: &data}
}

// Kind returns the page kind.
func (p PageType) Kind() Kind {
	return p.kind
}

// IsIndex reports whether p is the Index classification.
func (p PageType) IsIndex() bool {
	return p.kind == KindIndex
}

// NewsData returns a copy of the news payload. ok is false for other kinds.
func (p PageType) NewsData() (NewsData, bool) {
	if p.kind != KindNews || p.news == nil {
		return NewsData{}, false
	}
	return *p.news, true
}

// PersonData returns a copy of the person payload. ok is false for other kinds.
func (p PageType) PersonData() (PersonData, bool) {
	if p.kind != KindPerson || p.person == nil {
		return PersonData{}, false
	}
	return *p.person, true
}

// ReportData returns a copy of the report payload. ok is false for other kinds.
func (p PageType) ReportData() (ReportData, bool) {
	if p.kind != KindReport || p.report == nil {
		return ReportData{}, false
	}
	return *p.report, true
}

// String returns the kind name, e.g. "index" or "news".
func (p PageType) String() string {
	return p.kind.String()
}
