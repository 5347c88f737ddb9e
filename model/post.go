package model

// FeedKey is the single partition every post lives in on the by-feed index,
// so the whole feed can be read back ordered by CreatedAt.
const FeedKey = "posts"

type Post struct {
	Id          string   `json:"id" dynamo:"Id,hash"`
	Feed        string   `json:"-" dynamo:"Feed" index:"by-feed,hash"`
	UserId      string   `json:"userId" dynamo:"UserId"`
	Username    string   `json:"username" dynamo:"Username"`
	Title       string   `json:"title" dynamo:"Title"`
	Caption     string   `json:"caption" dynamo:"Caption"`
	Description string   `json:"description" dynamo:"Description"`
	ImageKey    string   `json:"imageKey" dynamo:"ImageKey"`
	ImageBase64 string   `json:"imageBase64,omitempty" dynamo:"-"`
	LikedBy     []string `json:"likedBy" dynamo:"LikedBy,set,omitempty"`
	Comments    []string `json:"comments" dynamo:"Comments,omitempty"`
	CreatedAt   string   `json:"createdAt" dynamo:"CreatedAt" index:"by-feed,range"`
}

// HasLiker reports whether identity is in the liker set.
func (post *Post) HasLiker(identity string) bool {
	for _, id := range post.LikedBy {
		if id == identity {
			return true
		}
	}
	return false
}

// FeedItem is a post as one viewer sees it.
type FeedItem struct {
	Post
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}
