package lastfm

// Tag is a Last.fm tag with its popularity weight (0-100).
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
	URL   string `json:"url,omitempty"`
}

type tagAttr struct {
	Artist string `json:"artist"`
	Track  string `json:"track,omitempty"`
}

type topTags struct {
	Tag  []Tag   `json:"tag"`
	Attr tagAttr `json:"@attr"`
}

// tagsResponse is the JSON body of track.getTopTags and artist.getTopTags.
type tagsResponse struct {
	TopTags topTags `json:"toptags"`
}

// apiError is a Last.fm error body.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
