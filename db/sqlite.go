package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-gorp/gorp"
	"github.com/google/uuid"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
	"github.com/mattn/go-sqlite3"
)

type sqlitePost struct {
	Id          string `db:"id"`
	UserId      string `db:"user_id"`
	Username    string `db:"username"`
	Title       string `db:"title"`
	Caption     string `db:"caption"`
	Description string `db:"description"`
	ImageKey    string `db:"image_key"`
	CreatedAt   string `db:"created_at"`
}

type sqliteLike struct {
	PostId string `db:"post_id"`
	UserId string `db:"user_id"`
}

type sqliteUser struct {
	Id        string `db:"id"`
	Username  string `db:"username"`
	Password  string `db:"password"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	CreatedAt string `db:"created_at"`
}

type sqliteSession struct {
	SessionId string `db:"session_id"`
	UserId    string `db:"user_id"`
	Username  string `db:"username"`
	ExpiresAt int64  `db:"expires_at"`
}

// Sqlite is the single-file store used when running locally and in tests.
type Sqlite struct {
	sqlite *sql.DB
	dbmap  *gorp.DbMap
}

func OpenSqlite(path string) (*Sqlite, error) {
	sqlite, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one connection: sqlite serializes writers anyway and :memory: is per connection
	sqlite.SetMaxOpenConns(1)
	if err := sqlite.Ping(); err != nil {
		sqlite.Close()
		return nil, err
	}
	dbmap := &gorp.DbMap{Db: sqlite, Dialect: gorp.SqliteDialect{}}
	dbmap.AddTableWithName(sqlitePost{}, "posts").SetKeys(false, "Id")
	dbmap.AddTableWithName(sqliteLike{}, "post_likes").SetKeys(false, "PostId", "UserId")
	users := dbmap.AddTableWithName(sqliteUser{}, "users").SetKeys(false, "Id")
	users.ColMap("Username").SetUnique(true).SetNotNull(true)
	dbmap.AddTableWithName(sqliteSession{}, "sessions").SetKeys(false, "SessionId")
	return &Sqlite{sqlite: sqlite, dbmap: dbmap}, nil
}

func (s *Sqlite) Close() error {
	return s.sqlite.Close()
}

// Setup creates the schema. It is safe to run on every start.
func (s *Sqlite) Setup(ctx context.Context) error {
	if err := s.dbmap.CreateTablesIfNotExists(); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	_, err := s.dbmap.WithContext(ctx).Exec(`create index if not exists idx_posts_created_at on posts(created_at)`)
	return err
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) &&
		(serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func (s *Sqlite) CreatePost(ctx context.Context, post *model.Post) (string, error) {
	post.Id = uuid.New().String()
	post.Feed = model.FeedKey
	row := sqlitePost{
		Id:          post.Id,
		UserId:      post.UserId,
		Username:    post.Username,
		Title:       post.Title,
		Caption:     post.Caption,
		Description: post.Description,
		ImageKey:    post.ImageKey,
		CreatedAt:   post.CreatedAt,
	}
	if err := s.dbmap.WithContext(ctx).Insert(&row); err != nil {
		return "", err
	}
	// a new post starts with no likers, whatever the caller passed
	post.LikedBy = []string{}
	return post.Id, nil
}

func toPost(row sqlitePost, likers []string) model.Post {
	if likers == nil {
		likers = []string{}
	}
	return model.Post{
		Id:          row.Id,
		Feed:        model.FeedKey,
		UserId:      row.UserId,
		Username:    row.Username,
		Title:       row.Title,
		Caption:     row.Caption,
		Description: row.Description,
		ImageKey:    row.ImageKey,
		LikedBy:     likers,
		Comments:    []string{},
		CreatedAt:   row.CreatedAt,
	}
}

func (s *Sqlite) GetPost(ctx context.Context, id string) (model.Post, error) {
	exec := s.dbmap.WithContext(ctx)
	var row sqlitePost
	err := exec.SelectOne(&row, `select * from posts where id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Post{}, domain.ErrNotFound
	}
	if err != nil {
		return model.Post{}, err
	}
	var likes []sqliteLike
	if _, err := exec.Select(&likes, `select post_id, user_id from post_likes where post_id = ? order by rowid`, id); err != nil {
		return model.Post{}, err
	}
	likers := make([]string, len(likes))
	for i, like := range likes {
		likers[i] = like.UserId
	}
	return toPost(row, likers), nil
}

func (s *Sqlite) ListPosts(ctx context.Context) ([]model.Post, error) {
	exec := s.dbmap.WithContext(ctx)
	var rows []sqlitePost
	if _, err := exec.Select(&rows, `select * from posts order by created_at desc, id desc`); err != nil {
		return nil, err
	}
	var likes []sqliteLike
	if _, err := exec.Select(&likes, `select post_id, user_id from post_likes order by rowid`); err != nil {
		return nil, err
	}
	likers := make(map[string][]string)
	for _, like := range likes {
		likers[like.PostId] = append(likers[like.PostId], like.UserId)
	}
	posts := make([]model.Post, len(rows))
	for i, row := range rows {
		posts[i] = toPost(row, likers[row.Id])
	}
	return posts, nil
}

func (s *Sqlite) exists(exec gorp.SqlExecutor, postId string) error {
	n, err := exec.SelectInt(`select count(*) from posts where id = ?`, postId)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Sqlite) AddLiker(ctx context.Context, postId string, identity string) error {
	exec := s.dbmap.WithContext(ctx)
	if err := s.exists(exec, postId); err != nil {
		return err
	}
	_, err := exec.Exec(`insert or ignore into post_likes (post_id, user_id) values (?, ?)`, postId, identity)
	return err
}

func (s *Sqlite) RemoveLiker(ctx context.Context, postId string, identity string) error {
	exec := s.dbmap.WithContext(ctx)
	if err := s.exists(exec, postId); err != nil {
		return err
	}
	_, err := exec.Exec(`delete from post_likes where post_id = ? and user_id = ?`, postId, identity)
	return err
}

func (s *Sqlite) CreateUser(ctx context.Context, user *model.User) error {
	row := sqliteUser{
		Id:        user.Id,
		Username:  user.Username,
		Password:  user.Password,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CreatedAt: user.CreatedAt,
	}
	err := s.dbmap.WithContext(ctx).Insert(&row)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateUsername
	}
	return err
}

func (s *Sqlite) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var row sqliteUser
	err := s.dbmap.WithContext(ctx).SelectOne(&row, `select * from users where username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, domain.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		Id:        row.Id,
		Username:  row.Username,
		Password:  row.Password,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *Sqlite) PutSession(ctx context.Context, session model.Session) error {
	_, err := s.dbmap.WithContext(ctx).Exec(
		`insert or replace into sessions (session_id, user_id, username, expires_at) values (?, ?, ?, ?)`,
		session.SessionId, session.UserId, session.Username, session.ExpiresAt)
	return err
}

func (s *Sqlite) GetSession(ctx context.Context, sessionId string) (model.Session, error) {
	var row sqliteSession
	err := s.dbmap.WithContext(ctx).SelectOne(&row, `select * from sessions where session_id = ?`, sessionId)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	return model.Session(row), nil
}

func (s *Sqlite) DeleteSession(ctx context.Context, sessionId string) error {
	_, err := s.dbmap.WithContext(ctx).Exec(`delete from sessions where session_id = ?`, sessionId)
	return err
}

var (
	_ domain.PostStore    = (*Sqlite)(nil)
	_ domain.UserStore    = (*Sqlite)(nil)
	_ domain.SessionStore = (*Sqlite)(nil)
)
