package models

// LocationCandidate is one entry of the search.json response
type LocationCandidate struct {
	ID      int64   `json:"id,omitempty"`
	Name    string  `json:"name"`
	Region  string  `json:"region,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	URL     string  `json:"url,omitempty"`
}
