package api

type RenderedBlock struct {
	Name     string `json:"name"`
	Rendered string `json:"rendered"`
}

type Error struct {
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Removed  int `json:"removed"`
}
