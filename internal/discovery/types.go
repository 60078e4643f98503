package discovery

// searchResponse is the top-level response from the OpenAlex works endpoint.
type searchResponse struct {
	Meta    meta   `json:"meta"`
	Results []work `json:"results"`
}

type meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// work is an academic work as returned by OpenAlex.
type work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	RelevanceScore  *float64     `json:"relevance_score"`
	Authorships     []authorship `json:"authorships"`
	PrimaryLocation *location    `json:"primary_location"`
	OpenAccess      *openAccess  `json:"open_access"`

	// Abstracts are stored as an inverted index and reconstructed client-side.
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type openAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

type authorship struct {
	Author       authorInfo    `json:"author"`
	Institutions []institution `json:"institutions"`
}

type authorInfo struct {
	DisplayName string `json:"display_name"`
	Orcid       string `json:"orcid"`
}

type institution struct {
	DisplayName string `json:"display_name"`
}

type location struct {
	Source *venueSource `json:"source"`
	PDFURL string       `json:"pdf_url"`
}

type venueSource struct {
	DisplayName string `json:"display_name"`
}
