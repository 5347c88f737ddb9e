package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/google/uuid"
	"github.com/guregu/dynamo"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/env"
	"github.com/hirosato/petsgram/model"
)

const feedIndex = "by-feed"

// Dynamo keeps posts, users and sessions in DynamoDB.
type Dynamo struct {
	db       *dynamo.DB
	cfg      env.Config
	posts    dynamo.Table
	users    dynamo.Table
	sessions dynamo.Table
}

func NewDynamo(p client.ConfigProvider, cfg env.Config) *Dynamo {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.DynamoEndpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.DynamoEndpoint)
	}
	db := dynamo.New(p, awsCfg)
	return &Dynamo{
		db:       db,
		cfg:      cfg,
		posts:    db.Table(cfg.PostTable),
		users:    db.Table(cfg.UserTable),
		sessions: db.Table(cfg.SessionTable),
	}
}

func isCondCheckFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func isTableInUse(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeResourceInUseException
}

func notFound(err error) error {
	if errors.Is(err, dynamo.ErrNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// Setup creates the tables. Tables that already exist are left alone.
func (d *Dynamo) Setup(ctx context.Context) error {
	tables := []struct {
		name   string
		from   interface{}
		create func(*dynamo.CreateTable) *dynamo.CreateTable
	}{
		{d.cfg.PostTable, model.Post{}, func(ct *dynamo.CreateTable) *dynamo.CreateTable {
			return ct.Project(feedIndex, dynamo.AllProjection)
		}},
		{d.cfg.UserTable, model.User{}, nil},
		{d.cfg.SessionTable, model.Session{}, nil},
	}
	for _, t := range tables {
		ct := d.db.CreateTable(t.name, t.from).OnDemand(true)
		if t.create != nil {
			ct = t.create(ct)
		}
		err := ct.RunWithContext(ctx)
		if isTableInUse(err) {
			log.Printf("db: table %s already exists", t.name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		log.Printf("db: created table %s", t.name)
	}
	return nil
}

func (d *Dynamo) CreatePost(ctx context.Context, post *model.Post) (string, error) {
	post.Id = uuid.New().String()
	post.Feed = model.FeedKey
	err := d.posts.Put(post).If("attribute_not_exists(Id)").RunWithContext(ctx)
	if err != nil {
		return "", err
	}
	return post.Id, nil
}

func (d *Dynamo) GetPost(ctx context.Context, id string) (model.Post, error) {
	var result model.Post
	err := d.posts.Get("Id", id).OneWithContext(ctx, &result)
	return result, notFound(err)
}

func (d *Dynamo) ListPosts(ctx context.Context) ([]model.Post, error) {
	var result []model.Post
	err := d.posts.Get("Feed", model.FeedKey).
		Index(feedIndex).
		Order(dynamo.Descending).
		AllWithContext(ctx, &result)
	return result, err
}

func (d *Dynamo) AddLiker(ctx context.Context, postId string, identity string) error {
	err := d.posts.Update("Id", postId).
		AddStringsToSet("LikedBy", identity).
		If("attribute_exists(Id)").
		RunWithContext(ctx)
	if isCondCheckFailed(err) {
		return domain.ErrNotFound
	}
	return err
}

func (d *Dynamo) RemoveLiker(ctx context.Context, postId string, identity string) error {
	err := d.posts.Update("Id", postId).
		DeleteStringsFromSet("LikedBy", identity).
		If("attribute_exists(Id)").
		RunWithContext(ctx)
	if isCondCheckFailed(err) {
		return domain.ErrNotFound
	}
	return err
}

// CreateUser relies on Username being the hash key: the conditional put
// fails if anyone holds it already.
func (d *Dynamo) CreateUser(ctx context.Context, user *model.User) error {
	err := d.users.Put(user).If("attribute_not_exists(Username)").RunWithContext(ctx)
	if isCondCheckFailed(err) {
		return domain.ErrDuplicateUsername
	}
	return err
}

func (d *Dynamo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var result model.User
	err := d.users.Get("Username", username).OneWithContext(ctx, &result)
	return result, notFound(err)
}

func (d *Dynamo) PutSession(ctx context.Context, session model.Session) error {
	return d.sessions.Put(session).RunWithContext(ctx)
}

func (d *Dynamo) GetSession(ctx context.Context, sessionId string) (model.Session, error) {
	var result model.Session
	err := d.sessions.Get("SessionId", sessionId).OneWithContext(ctx, &result)
	return result, notFound(err)
}

func (d *Dynamo) DeleteSession(ctx context.Context, sessionId string) error {
	return d.sessions.Delete("SessionId", sessionId).RunWithContext(ctx)
}

var (
	_ domain.PostStore    = (*Dynamo)(nil)
	_ domain.UserStore    = (*Dynamo)(nil)
	_ domain.SessionStore = (*Dynamo)(nil)
)
