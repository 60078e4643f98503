package collector

import (
	"net/url"
	"strings"
)

// fullTextSuffixes are path endings that indicate a direct document
// download rather than a publisher landing page.
var fullTextSuffixes = []string{".pdf", ".ps", ".ps.gz", ".txt", ".xml"}

// fullTextPathMarkers are path fragments used by repositories that serve
// full text from extension-less URLs.
var fullTextPathMarkers = []string{"/pdf/", "/fulltext", "/full-text", "/download/"}

// fullTextHosts serve full text for every document URL they expose.
var fullTextHosts = map[string]struct{}{
	"arxiv.org":            {},
	"www.biorxiv.org":      {},
	"www.medrxiv.org":      {},
	"europepmc.org":        {},
	"pmc.ncbi.nlm.nih.gov": {},
}

// IsDirectFullTextURL classifies a URL as a direct full-text link by
// suffix and host patterns alone. It never fetches the URL; landing
// pages that happen to serve HTML behind a pdf-looking path are accepted
// and left for the extraction worker to reject.
func IsDirectFullTextURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, suffix := range fullTextSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	for _, marker := range fullTextPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}

	host := strings.ToLower(u.Host)
	if _, ok := fullTextHosts[host]; ok {
		return path != "" && path != "/"
	}
	return false
}
