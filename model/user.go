package model

// User is an account. Username is the table key, which is what makes it unique.
type User struct {
	Id        string `json:"id" dynamo:"Id"`
	Username  string `json:"username" dynamo:"Username,hash"`
	Password  string `json:"-" dynamo:"Password"`
	FirstName string `json:"firstName" dynamo:"FirstName"`
	LastName  string `json:"lastName" dynamo:"LastName"`
	CreatedAt string `json:"createdAt" dynamo:"CreatedAt"`
}

func (user User) AsViewer() Viewer {
	return Viewer{UserId: user.Id, Username: user.Username}
}
