package models

// Location is one entry of the location catalog. A lobby receives a fixed
// sequence of these at creation; the sequence is immutable for that lobby.
type Location struct {
	ID      int64   `json:"-"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	URL     string  `json:"url"`
}
