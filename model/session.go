package model

import "time"

type Session struct {
	SessionId string `dynamo:"SessionId,hash"`
	UserId    string `dynamo:"UserId"`
	Username  string `dynamo:"Username"`
	ExpiresAt int64  `dynamo:"ExpiresAt"`
}

func (s Session) IsValid(now time.Time) bool {
	return s.SessionId != "" && s.UserId != "" && now.Unix() < s.ExpiresAt
}

func (s Session) AsViewer() Viewer {
	return Viewer{UserId: s.UserId, Username: s.Username}
}
