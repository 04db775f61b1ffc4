package ephemeris

// Route describes one operation exposed over HTTP.
type Route struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Routes is the static operation listing served by Help.
var Routes = []Route{
	{"GET", "/", "returns the whole data set"},
	{"GET", "/epochs?limit=int&offset=int", "returns a window of epochs; both parameters are optional non-negative integers"},
	{"GET", "/epochs/{epoch}", "returns the state vector for a specific epoch"},
	{"GET", "/epochs/{epoch}/speed", "returns the speed for a specific epoch"},
	{"GET", "/epochs/{epoch}/location", "returns latitude, longitude, altitude and geoposition for a specific epoch"},
	{"GET", "/now", "returns location, altitude, geoposition and speed for the epoch nearest in time"},
	{"GET", "/now/stream?interval=int", "streams the /now report as server-sent events every interval seconds (1-60)"},
	{"GET", "/comment", "returns the comment list"},
	{"GET", "/header", "returns the header object"},
	{"GET", "/metadata", "returns the metadata object"},
	{"GET", "/help", "returns this listing"},
	{"DELETE", "/delete-data", "removes all state vectors; header, metadata and comments are kept"},
	{"POST", "/post-data", "reloads the data set from the upstream feed"},
}
