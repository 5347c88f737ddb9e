package model

// Anonymous is the identity used for the author and liker keys when nobody
// is logged in. Every anonymous viewer shares it.
const Anonymous = "anonymous"

// Viewer is whoever is looking at the feed.
type Viewer struct {
	UserId   string `json:"id"`
	Username string `json:"username"`
}

func AnonymousViewer() Viewer {
	return Viewer{UserId: Anonymous, Username: Anonymous}
}

func (v Viewer) IsAnonymous() bool {
	return v.UserId == "" || v.UserId == Anonymous
}

// Identity is the key stored in a post's liker set.
func (v Viewer) Identity() string {
	if v.IsAnonymous() {
		return Anonymous
	}
	return v.UserId
}
